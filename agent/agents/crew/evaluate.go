package crew

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
)

const evaluatorSystemPrompt = "You grade the work of AI agents. Reply with a single integer score from 1 (useless) to 10 (excellent) and nothing else."

var scorePattern = regexp.MustCompile(`\d+(\.\d+)?`)

// Evaluator scores a task output from 1 to 10.
type Evaluator interface {
	Score(ctx context.Context, task promptx.TaskDef, output string) (float64, error)
}

type OpenAIEvaluator struct {
	client *openaisdk.Client
	model  string
}

func NewOpenAIEvaluator(client *openaisdk.Client, model string) (*OpenAIEvaluator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: evaluator client is not configured", contractx.ErrConfigurationMissing)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: evaluator model is required", contractx.ErrValidation)
	}
	return &OpenAIEvaluator{client: client, model: strings.TrimSpace(model)}, nil
}

func (e *OpenAIEvaluator) Score(ctx context.Context, task promptx.TaskDef, output string) (float64, error) {
	user := fmt.Sprintf(
		"Task:\n%s\n\nExpected output:\n%s\n\nActual output:\n%s\n\nScore the actual output.",
		strings.TrimSpace(task.Description),
		strings.TrimSpace(task.ExpectedOutput),
		strings.TrimSpace(output),
	)

	resp, err := e.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(e.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(evaluatorSystemPrompt),
			openaisdk.UserMessage(user),
		},
		Temperature: openaisdk.Float(0),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: evaluator: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("%w: evaluator returned no choices", contractx.ErrSchemaViolation)
	}
	return parseScore(resp.Choices[0].Message.Content)
}

func parseScore(content string) (float64, error) {
	m := scorePattern.FindString(content)
	if m == "" {
		return 0, fmt.Errorf("%w: no score in %q", contractx.ErrSchemaViolation, content)
	}
	score, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad score %q: %v", contractx.ErrSchemaViolation, m, err)
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}

// TestReport holds per task scores, one per iteration.
type TestReport struct {
	Crew       string
	Model      string
	Iterations int
	Tasks      []string
	Scores     map[string][]float64
}

func (r TestReport) Average(task string) float64 {
	return mean(r.Scores[task])
}

func (r TestReport) Overall() float64 {
	var all []float64
	for _, t := range r.Tasks {
		all = append(all, r.Scores[t]...)
	}
	return mean(all)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Test runs the crew n times and scores every task output.
func (c *Crew) Test(ctx context.Context, n int, evaluator Evaluator, model string, inputs map[string]string) (TestReport, error) {
	if n <= 0 {
		n = 1
	}
	if evaluator == nil {
		return TestReport{}, fmt.Errorf("%w: evaluator is required", contractx.ErrValidation)
	}

	report := TestReport{
		Crew:       c.name,
		Model:      model,
		Iterations: n,
		Scores:     make(map[string][]float64, len(c.tasks)),
	}
	defs := make(map[string]promptx.TaskDef, len(c.tasks))
	for _, t := range c.tasks {
		report.Tasks = append(report.Tasks, t.Name)
		defs[t.Name] = t
	}

	for i := 1; i <= n; i++ {
		out, err := c.Kickoff(ctx, inputs)
		if err != nil {
			return TestReport{}, fmt.Errorf("test iteration %d: %w", i, err)
		}
		for _, task := range out.Tasks {
			score, err := evaluator.Score(ctx, defs[task.Name], task.Raw)
			if err != nil {
				return TestReport{}, fmt.Errorf("score %s: %w", task.Name, err)
			}
			report.Scores[task.Name] = append(report.Scores[task.Name], score)
		}
		log.Info().Str("crew", c.name).Int("iteration", i).Int("of", n).Msg("test iteration completed")
	}
	return report, nil
}
