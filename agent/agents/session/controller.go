package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	nodex "github.com/tanpawarit/voiceboard/agent/nodes/session"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDefaultPersonas sets the menu used when discovery returns no candidates.
func WithDefaultPersonas(personas []contractx.Persona) Option {
	return func(c *Controller) {
		if len(personas) > 0 {
			c.defaults = append([]contractx.Persona(nil), personas...)
		}
	}
}

// Controller drives one session at a time: idea intake, persona discovery,
// persona selection and the conversation loop. It keeps no state of its own;
// everything lives on the Session the caller holds.
type Controller struct {
	pipeline contractx.Pipeline
	defaults []contractx.Persona
	now      func() time.Time

	turnRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

func New(pipeline contractx.Pipeline, opts ...Option) (*Controller, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}

	c := &Controller{
		pipeline: pipeline,
		defaults: []contractx.Persona{contractx.NewPersona("Kevin O'Leary", "Direct, money-focused investor feedback")},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	runner, err := c.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.turnRunner = runner

	return c, nil
}

// StartSession delegates discovery for a non-blank idea exactly once and
// returns the candidates unmodified. On failure no session is created and
// the caller may retry.
func (c *Controller) StartSession(ctx context.Context, startupIdea string) (*statex.Session, []contractx.Persona, error) {
	s, err := statex.NewSession(startupIdea, c.now())
	if err != nil {
		return nil, nil, err
	}

	logger := log.With().Str("session_id", s.ID).Logger()
	logger.Info().Msg("discovering personas")

	res, err := c.pipeline.Discover(ctx, contractx.DiscoveryInput{StartupIdea: s.StartupIdea})
	if err != nil {
		logger.Error().Err(err).Msg("persona discovery failed")
		return nil, nil, fmt.Errorf("%w: discovery: %v", contractx.ErrDelegation, err)
	}
	if err := s.MarkDiscovered(); err != nil {
		return nil, nil, err
	}

	logger.Info().Int("candidates", len(res.Personas)).Str("kickoff_id", res.KickoffID).Msg("personas discovered")
	return s, res.Personas, nil
}

// SelectPersona maps a 1-based menu choice to a candidate. Any choice outside
// the menu selects the first candidate.
func (c *Controller) SelectPersona(candidates []contractx.Persona, choice int) contractx.Persona {
	if len(candidates) == 0 {
		return c.defaults[0]
	}
	if choice < 1 || choice > len(candidates) {
		return candidates[0]
	}
	return candidates[choice-1]
}

// RunTurn sends one user message to the chosen persona. On success the
// user and persona turns are appended in that order and the persona turn is
// returned. On failure history is left untouched.
func (c *Controller) RunTurn(ctx context.Context, s *statex.Session, userText string) (statex.Turn, error) {
	out, err := c.turnRunner.Invoke(ctx, nodex.GraphInput{Session: s, Text: userText})
	if err != nil {
		return statex.Turn{}, unwrapNodeError(err)
	}
	return out.Turn, nil
}

// SerializeHistory renders the session history as the follow-up payload.
func (c *Controller) SerializeHistory(s *statex.Session) string {
	return s.SerializeHistory()
}

var knownErrors = []error{
	contractx.ErrInputValidation,
	contractx.ErrDelegation,
	contractx.ErrValidation,
	statex.ErrNilSession,
	statex.ErrPersonaNotChosen,
}

// unwrapNodeError keeps the sentinel visible and drops graph node framing
// from the message shown to the user.
func unwrapNodeError(err error) error {
	for _, sentinel := range knownErrors {
		if errors.Is(err, sentinel) {
			msg := err.Error()
			if i := strings.Index(msg, sentinel.Error()); i > 0 {
				rest := msg[i+len(sentinel.Error()):]
				if j := strings.IndexByte(rest, '\n'); j >= 0 {
					rest = rest[:j]
				}
				return fmt.Errorf("%w%s", sentinel, rest)
			}
			return err
		}
	}
	return err
}
