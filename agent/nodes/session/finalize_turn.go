package sessionnode

import (
	"fmt"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

// FinalizeTurn records the exchange. It runs only after a successful
// delegation, so a failed turn never touches history.
func FinalizeTurn(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if err := in.Session.AppendExchange(in.Text, in.Raw); err != nil {
		return GraphOutput{}, err
	}
	return GraphOutput{Turn: statex.Turn{Speaker: statex.SpeakerPersona, Text: in.Raw}}, nil
}
