package crew

import (
	"context"
	"fmt"
	"sort"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	llmx "github.com/tanpawarit/voiceboard/agent/llm"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
	toolx "github.com/tanpawarit/voiceboard/agent/tool"
)

type Config struct {
	MaxIterations int    `split_words:"true" default:"8"`
	TrainingFile  string `split_words:"true" default:"trained_agents_data.json"`
}

// Constructor builds the agent for one role.
type Constructor func(ctx context.Context) (contractx.Agent, error)

// ModelFactory returns the chat model an agent role runs on.
type ModelFactory func(ctx context.Context, role contractx.Role) (einomodel.ToolCallingChatModel, error)

// OpenRouterModels creates a chat model per role from the LLM settings.
func OpenRouterModels(cfg llmx.Config) ModelFactory {
	return func(ctx context.Context, role contractx.Role) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(role)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create model for agent=%s: %v", contractx.ErrModelInvoke, role, err)
		}
		return m, nil
	}
}

// Registry maps role names to agent constructors. Agents are built on first
// use and reused afterwards.
type Registry struct {
	mu           sync.Mutex
	constructors map[contractx.Role]Constructor
	agents       map[contractx.Role]contractx.Agent
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: map[contractx.Role]Constructor{},
		agents:       map[contractx.Role]contractx.Agent{},
	}
}

func (r *Registry) Register(role contractx.Role, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[role] = ctor
	delete(r.agents, role)
}

func (r *Registry) Roles() []contractx.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	roles := make([]contractx.Role, 0, len(r.constructors))
	for role := range r.constructors {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

func (r *Registry) Agent(ctx context.Context, role contractx.Role) (contractx.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.agents[role]; ok {
		return a, nil
	}
	ctor, ok := r.constructors[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownRole, role)
	}
	a, err := ctor(ctx)
	if err != nil {
		return nil, err
	}
	r.agents[role] = a
	return a, nil
}

// Agents resolves several roles in order.
func (r *Registry) Agents(ctx context.Context, roles ...contractx.Role) ([]contractx.Agent, error) {
	out := make([]contractx.Agent, 0, len(roles))
	for _, role := range roles {
		a, err := r.Agent(ctx, role)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// NewDefaultRegistry registers every agent defined in prompts. Training
// guidance found in cfg.TrainingFile is folded into the agents' prompts.
func NewDefaultRegistry(
	prompts promptx.PromptSet,
	models ModelFactory,
	tools *toolx.Catalog,
	cfg Config,
) (*Registry, error) {
	if models == nil {
		return nil, fmt.Errorf("%w: model factory is required", contractx.ErrValidation)
	}

	training, err := LoadTrainingData(cfg.TrainingFile)
	if err != nil {
		log.Warn().Err(err).Str("file", cfg.TrainingFile).Msg("ignoring unreadable training data")
		training = TrainingData{}
	}

	reg := NewRegistry()
	for role, def := range prompts.Agents {
		role, def := role, def
		reg.Register(role, func(ctx context.Context) (contractx.Agent, error) {
			m, err := models(ctx, role)
			if err != nil {
				return nil, err
			}
			return NewAgent(ctx, AgentConfig{
				Definition:    def,
				Model:         m,
				Tools:         tools,
				MaxIterations: cfg.MaxIterations,
				Guidance:      training.Guidance(role),
			})
		})
	}
	return reg, nil
}
