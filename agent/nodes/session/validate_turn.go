package sessionnode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

const (
	ShapeFirstTurn = "first_turn"
	ShapeFollowUp  = "follow_up"
)

type GraphInput struct {
	Session *statex.Session
	Text    string
}

type GraphOutput struct {
	Turn statex.Turn
}

type GraphState struct {
	Session *statex.Session
	Text    string
	Raw     string
}

func ValidateTurn(in GraphInput) (*GraphState, error) {
	if in.Session == nil {
		return nil, statex.ErrNilSession
	}

	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: message is required", contractx.ErrInputValidation)
	}
	if in.Session.Phase != statex.PhaseConversing {
		return nil, statex.ErrPersonaNotChosen
	}

	return &GraphState{
		Session: in.Session,
		Text:    in.Text,
	}, nil
}

// ChooseShape picks the delegation entry point. Only an empty history uses
// the first-turn shape.
func ChooseShape(in *GraphState) (string, error) {
	if in == nil || in.Session == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if len(in.Session.History) == 0 {
		return ShapeFirstTurn, nil
	}
	return ShapeFollowUp, nil
}
