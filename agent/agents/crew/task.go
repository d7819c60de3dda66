package crew

import (
	"context"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
)

// RenderTask fills the task's description and expected output from inputs
// and appends the outputs of its context tasks.
func RenderTask(ctx context.Context, def promptx.TaskDef, inputs map[string]string, contextOutputs []string) (string, error) {
	values := make(map[string]any, len(inputs))
	var missing []string
	for _, name := range def.Variables() {
		v, ok := inputs[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: task %s is missing inputs %s", contractx.ErrValidation, def.Name, strings.Join(missing, ", "))
	}

	template := einoprompt.FromMessages(
		schema.FString,
		schema.UserMessage(strings.TrimSpace(def.Description)+"\n\nExpected output:\n"+strings.TrimSpace(def.ExpectedOutput)),
	)
	msgs, err := template.Format(ctx, values)
	if err != nil {
		return "", fmt.Errorf("%w: render task %s: %v", contractx.ErrValidation, def.Name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%w: render task %s produced no message", contractx.ErrValidation, def.Name)
	}

	prompt := msgs[0].Content
	if len(contextOutputs) > 0 {
		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\n\nContext from earlier work:")
		for _, out := range contextOutputs {
			b.WriteString("\n\n")
			b.WriteString(strings.TrimSpace(out))
		}
		prompt = b.String()
	}
	return prompt, nil
}
