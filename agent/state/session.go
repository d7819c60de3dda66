package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
)

// Session is one entrepreneur's evaluation run.
// - StartupIdea and Persona are written once.
// - History only grows; turns are never edited or removed.
type Session struct {
	ID          string            `json:"id"`
	StartupIdea string            `json:"startup_idea"`
	Persona     contractx.Persona `json:"persona"`
	History     []Turn            `json:"history,omitempty"`
	Phase       Phase             `json:"phase"`
	StartedAt   time.Time         `json:"started_at"`
}

type Phase string

const (
	PhaseAwaitingIdea        Phase = "awaiting_idea"
	PhaseDiscoveringPersonas Phase = "discovering_personas"
	PhaseAwaitingSelection   Phase = "awaiting_selection"
	PhaseConversing          Phase = "conversing"
	PhaseEnded               Phase = "ended"
)

type Speaker string

const (
	SpeakerUser    Speaker = "user"
	SpeakerPersona Speaker = "persona"
)

type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

var (
	ErrNilSession        = errors.New("session is nil")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrPersonaNotChosen  = errors.New("persona has not been selected")
)

// NewSession starts a session for an idea. The idea must not be blank.
func NewSession(startupIdea string, now time.Time) (*Session, error) {
	idea := strings.TrimSpace(startupIdea)
	if idea == "" {
		return nil, fmt.Errorf("%w: startup idea is required", contractx.ErrInputValidation)
	}
	return &Session{
		ID:          uuid.NewString(),
		StartupIdea: idea,
		Phase:       PhaseDiscoveringPersonas,
		StartedAt:   now.UTC(),
	}, nil
}

// MarkDiscovered moves a session from discovery to persona selection.
func (s *Session) MarkDiscovered() error {
	if s == nil {
		return ErrNilSession
	}
	if s.Phase != PhaseDiscoveringPersonas {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, PhaseAwaitingSelection)
	}
	s.Phase = PhaseAwaitingSelection
	return nil
}

// ChoosePersona fixes the counterpart for the rest of the session.
func (s *Session) ChoosePersona(p contractx.Persona) error {
	if s == nil {
		return ErrNilSession
	}
	if s.Phase != PhaseAwaitingSelection {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, PhaseConversing)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: persona name is empty", contractx.ErrValidation)
	}
	s.Persona = p
	s.Phase = PhaseConversing
	return nil
}

// AppendExchange records a user message and the persona's reply together.
func (s *Session) AppendExchange(userText, personaText string) error {
	if s == nil {
		return ErrNilSession
	}
	if s.Phase != PhaseConversing {
		return ErrPersonaNotChosen
	}
	s.History = append(s.History,
		Turn{Speaker: SpeakerUser, Text: userText},
		Turn{Speaker: SpeakerPersona, Text: personaText},
	)
	return nil
}

// End closes the session. Ending twice is a no-op.
func (s *Session) End() {
	if s != nil {
		s.Phase = PhaseEnded
	}
}

// SerializeHistory renders every turn as "<speaker>: <text>\n" in order.
// The user speaks as "User" and the persona under its display name.
func (s *Session) SerializeHistory() string {
	if s == nil || len(s.History) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range s.History {
		b.WriteString(s.speakerLabel(t.Speaker))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Session) speakerLabel(sp Speaker) string {
	if sp == SpeakerPersona {
		return s.Persona.Name
	}
	return "User"
}
