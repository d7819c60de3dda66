package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
	statex "github.com/tanpawarit/voiceboard/agent/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tanpawarit/voiceboard/agent/agents/crew"

// Output is the result of one kickoff. Raw is the last task's output.
type Output struct {
	KickoffID string
	Raw       string
	Tasks     []statex.TaskOutput
}

// ByName returns the output of the named task, if it ran.
func (o Output) ByName(name string) (statex.TaskOutput, bool) {
	for _, t := range o.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return statex.TaskOutput{}, false
}

type Option func(*Crew)

func WithStore(store statex.Store) Option {
	return func(c *Crew) {
		c.store = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Crew) {
		if now != nil {
			c.now = now
		}
	}
}

// Crew runs its tasks sequentially. Each task sees the outputs of the tasks
// named in its context, or the previous task's output when it names none.
type Crew struct {
	name   string
	agents map[contractx.Role]contractx.Agent
	tasks  []promptx.TaskDef
	store  statex.Store
	now    func() time.Time
	tracer trace.Tracer
}

func New(name string, agents []contractx.Agent, tasks []promptx.TaskDef, opts ...Option) (*Crew, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: crew name is required", contractx.ErrValidation)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: crew %s has no tasks", contractx.ErrValidation, name)
	}

	byRole := make(map[contractx.Role]contractx.Agent, len(agents))
	for _, a := range agents {
		if a == nil {
			continue
		}
		byRole[a.Role()] = a
	}

	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, ok := byRole[t.Agent]; !ok {
			return nil, fmt.Errorf("%w: task %s needs agent %s", contractx.ErrUnknownRole, t.Name, t.Agent)
		}
		for _, dep := range t.Context {
			if _, ok := seen[dep]; !ok {
				return nil, fmt.Errorf("%w: task %s context %s must run earlier", contractx.ErrValidation, t.Name, dep)
			}
		}
		seen[t.Name] = struct{}{}
	}

	c := &Crew{
		name:   name,
		agents: byRole,
		tasks:  append([]promptx.TaskDef(nil), tasks...),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Kickoff runs every task once with the given inputs.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (Output, error) {
	return c.run(ctx, inputs, nil)
}

// run executes the tasks after the ones already present in prior.
func (c *Crew) run(ctx context.Context, inputs map[string]string, prior []statex.TaskOutput) (Output, error) {
	kickoffID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "crew.kickoff", trace.WithAttributes(
		attribute.String("crew", c.name),
		attribute.String("kickoff_id", kickoffID),
		attribute.Int("resume_from", len(prior)),
	))
	defer span.End()

	logger := log.With().Str("crew", c.name).Str("kickoff_id", kickoffID).Logger()
	logger.Info().Int("tasks", len(c.tasks)).Int("resume_from", len(prior)).Msg("crew kickoff started")

	out := Output{KickoffID: kickoffID}
	byName := make(map[string]string, len(c.tasks))
	for _, p := range prior {
		p.TaskID = uuid.NewString()
		p.KickoffID = kickoffID
		p.CreatedAt = c.now()
		c.persist(ctx, &p)
		byName[p.Name] = p.Raw
		out.Tasks = append(out.Tasks, p)
	}

	for i := len(prior); i < len(c.tasks); i++ {
		def := c.tasks[i]
		raw, err := c.runTask(ctx, i, def, inputs, byName)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Str("task", def.Name).Msg("crew task failed")
			return Output{}, err
		}

		rec := statex.TaskOutput{
			TaskID:    uuid.NewString(),
			KickoffID: kickoffID,
			Crew:      c.name,
			Index:     i,
			Name:      def.Name,
			Agent:     string(def.Agent),
			Raw:       raw,
			Inputs:    copyInputs(inputs),
			CreatedAt: c.now(),
		}
		c.persist(ctx, &rec)

		byName[def.Name] = raw
		out.Tasks = append(out.Tasks, rec)
		out.Raw = raw
	}

	if out.Raw == "" && len(out.Tasks) > 0 {
		out.Raw = out.Tasks[len(out.Tasks)-1].Raw
	}
	logger.Info().Msg("crew kickoff completed")
	return out, nil
}

func (c *Crew) runTask(
	ctx context.Context,
	index int,
	def promptx.TaskDef,
	inputs map[string]string,
	done map[string]string,
) (string, error) {
	ctx, span := c.tracer.Start(ctx, "crew.task", trace.WithAttributes(
		attribute.String("task", def.Name),
		attribute.String("agent", string(def.Agent)),
		attribute.Int("index", index),
	))
	defer span.End()

	prompt, err := RenderTask(ctx, def, inputs, c.contextFor(index, def, done))
	if err != nil {
		return "", err
	}

	start := time.Now()
	raw, err := c.agents[def.Agent].Execute(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("task %s: %w", def.Name, err)
	}

	log.Debug().
		Str("crew", c.name).
		Str("task", def.Name).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(raw)).
		Msg("crew task completed")
	return raw, nil
}

func (c *Crew) contextFor(index int, def promptx.TaskDef, done map[string]string) []string {
	if len(def.Context) > 0 {
		outs := make([]string, 0, len(def.Context))
		for _, dep := range def.Context {
			if raw, ok := done[dep]; ok {
				outs = append(outs, raw)
			}
		}
		return outs
	}
	if index == 0 {
		return nil
	}
	if raw, ok := done[c.tasks[index-1].Name]; ok {
		return []string{raw}
	}
	return nil
}

func (c *Crew) persist(ctx context.Context, rec *statex.TaskOutput) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, rec); err != nil {
		log.Warn().Err(err).Str("crew", c.name).Str("task", rec.Name).Msg("failed to persist task output")
	}
}

func copyInputs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
