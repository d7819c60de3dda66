package sessionnode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
)

func DelegateFirstTurn(ctx context.Context, in *GraphState, pipeline contractx.Pipeline) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	res, err := pipeline.Converse(ctx, contractx.ConversationInput{
		SelectedPersonaName: in.Session.Persona.Name,
		UserMessage:         in.Text,
		StartupIdea:         in.Session.StartupIdea,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: first turn: %v", contractx.ErrDelegation, err)
	}
	return withRaw(in, res.Raw, ShapeFirstTurn)
}

func DelegateFollowUp(ctx context.Context, in *GraphState, pipeline contractx.Pipeline) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	res, err := pipeline.FollowUp(ctx, contractx.FollowUpInput{
		SelectedPersonaName: in.Session.Persona.Name,
		UserResponse:        in.Text,
		ConversationHistory: in.Session.SerializeHistory(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: follow-up: %v", contractx.ErrDelegation, err)
	}
	return withRaw(in, res.Raw, ShapeFollowUp)
}

func withRaw(in *GraphState, raw, shape string) (*GraphState, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: %s returned an empty reply", contractx.ErrDelegation, shape)
	}
	log.Debug().
		Str("session_id", in.Session.ID).
		Str("shape", shape).
		Int("history_turns", len(in.Session.History)).
		Msg("persona replied")
	in.Raw = raw
	return in, nil
}
