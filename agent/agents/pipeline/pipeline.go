package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	crewx "github.com/tanpawarit/voiceboard/agent/agents/crew"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
	statex "github.com/tanpawarit/voiceboard/agent/state"
	toolx "github.com/tanpawarit/voiceboard/agent/tool"
)

const (
	CrewDiscovery    = "persona_discovery"
	CrewConversation = "persona_conversation"
	CrewFollowUp     = "persona_followup"

	TaskPersonaIdentification = "persona_identification_task"
	TaskVoiceResearch         = "voice_research_task"
	TaskPersonaConversation   = "persona_conversation_task"
	TaskPersonaFollowUp       = "persona_followup_task"

	// ExampleIdea drives the non-interactive commands.
	ExampleIdea = "An AI-powered meal planning app that builds weekly grocery lists from a family's dietary goals and budget"
)

type crewSpec struct {
	roles []contractx.Role
	tasks []string
}

var crewSpecs = map[string]crewSpec{
	CrewDiscovery: {
		roles: []contractx.Role{contractx.RolePersonaIdentifier, contractx.RoleVoiceResearcher},
		tasks: []string{TaskPersonaIdentification, TaskVoiceResearch},
	},
	CrewConversation: {
		roles: []contractx.Role{contractx.RolePersonaConversant},
		tasks: []string{TaskPersonaConversation},
	},
	CrewFollowUp: {
		roles: []contractx.Role{contractx.RolePersonaConversant},
		tasks: []string{TaskPersonaFollowUp},
	},
}

type Option func(*Pipeline)

func WithStore(store statex.Store) Option {
	return func(p *Pipeline) {
		p.store = store
	}
}

func WithTools(tools *toolx.Catalog) Option {
	return func(p *Pipeline) {
		p.tools = tools
	}
}

// Pipeline exposes the three agent entry points a session needs, plus the
// training, replay and evaluation entry points of the discovery crew.
type Pipeline struct {
	registry *crewx.Registry
	prompts  promptx.PromptSet
	store    statex.Store
	tools    *toolx.Catalog
}

var _ contractx.Pipeline = (*Pipeline)(nil)

func New(registry *crewx.Registry, prompts promptx.PromptSet, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: agent registry is required", contractx.ErrValidation)
	}
	for name, spec := range crewSpecs {
		for _, task := range spec.tasks {
			if _, err := prompts.Task(task); err != nil {
				return nil, fmt.Errorf("crew %s: %w", name, err)
			}
		}
	}

	p := &Pipeline{
		registry: registry,
		prompts:  prompts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Crew assembles the named crew from the registry.
func (p *Pipeline) Crew(ctx context.Context, name string) (*crewx.Crew, error) {
	spec, ok := crewSpecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown crew %q", contractx.ErrValidation, name)
	}

	agents, err := p.registry.Agents(ctx, spec.roles...)
	if err != nil {
		return nil, err
	}
	tasks := make([]promptx.TaskDef, 0, len(spec.tasks))
	for _, name := range spec.tasks {
		def, err := p.prompts.Task(name)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, def)
	}

	var opts []crewx.Option
	if p.store != nil {
		opts = append(opts, crewx.WithStore(p.store))
	}
	return crewx.New(name, agents, tasks, opts...)
}

func (p *Pipeline) Discover(ctx context.Context, in contractx.DiscoveryInput) (contractx.DiscoveryResult, error) {
	out, err := p.kickoff(ctx, CrewDiscovery, in.Params())
	if err != nil {
		return contractx.DiscoveryResult{}, err
	}

	var sources []string
	if t, ok := out.ByName(TaskVoiceResearch); ok {
		sources = append(sources, t.Raw)
	}
	if t, ok := out.ByName(TaskPersonaIdentification); ok {
		sources = append(sources, t.Raw)
	}

	personas, ok := ParsePersonas(sources...)
	if !ok {
		log.Warn().Str("kickoff_id", out.KickoffID).Msg("discovery output held no persona list, using default menu")
		personas = DefaultPersonas()
	}

	return contractx.DiscoveryResult{
		Result:   contractx.Result{Raw: out.Raw, KickoffID: out.KickoffID},
		Personas: personas,
	}, nil
}

func (p *Pipeline) Converse(ctx context.Context, in contractx.ConversationInput) (contractx.Result, error) {
	out, err := p.kickoff(ctx, CrewConversation, in.Params())
	if err != nil {
		return contractx.Result{}, err
	}
	return contractx.Result{Raw: out.Raw, KickoffID: out.KickoffID}, nil
}

func (p *Pipeline) FollowUp(ctx context.Context, in contractx.FollowUpInput) (contractx.Result, error) {
	out, err := p.kickoff(ctx, CrewFollowUp, in.Params())
	if err != nil {
		return contractx.Result{}, err
	}
	return contractx.Result{Raw: out.Raw, KickoffID: out.KickoffID}, nil
}

func (p *Pipeline) kickoff(ctx context.Context, name string, inputs map[string]string) (crewx.Output, error) {
	c, err := p.Crew(ctx, name)
	if err != nil {
		return crewx.Output{}, err
	}
	return c.Kickoff(ctx, inputs)
}

// Train runs the discovery crew on the example idea and records feedback.
func (p *Pipeline) Train(ctx context.Context, n int, filename string, feedback crewx.FeedbackFunc) (crewx.TrainingData, error) {
	c, err := p.Crew(ctx, CrewDiscovery)
	if err != nil {
		return nil, err
	}
	return c.Train(ctx, n, contractx.DiscoveryInput{StartupIdea: ExampleIdea}.Params(), feedback, filename)
}

// Replay re-runs the stored kickoff that produced taskID, whichever crew ran it.
func (p *Pipeline) Replay(ctx context.Context, taskID string) (crewx.Output, error) {
	if p.store == nil {
		return crewx.Output{}, fmt.Errorf("%w: replay needs a task output store", contractx.ErrConfigurationMissing)
	}
	stored, err := p.store.KickoffByTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return crewx.Output{}, err
	}
	c, err := p.Crew(ctx, stored[0].Crew)
	if err != nil {
		return crewx.Output{}, err
	}
	return c.Replay(ctx, taskID)
}

// Test scores the discovery crew on the example idea.
func (p *Pipeline) Test(ctx context.Context, n int, evaluator crewx.Evaluator, model string) (crewx.TestReport, error) {
	c, err := p.Crew(ctx, CrewDiscovery)
	if err != nil {
		return crewx.TestReport{}, err
	}
	return c.Test(ctx, n, evaluator, model, contractx.DiscoveryInput{StartupIdea: ExampleIdea}.Params())
}

// LatestKickoff returns the task outputs of the most recent stored kickoff.
func (p *Pipeline) LatestKickoff(ctx context.Context) ([]statex.TaskOutput, error) {
	if p.store == nil {
		return nil, fmt.Errorf("%w: no task output store", contractx.ErrConfigurationMissing)
	}
	return p.store.LatestKickoff(ctx)
}
