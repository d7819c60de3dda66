package crew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

const (
	DefaultTrainingIterations = 2
	DefaultTrainingFile       = "trained_agents_data.json"

	maxGuidancePerAgent = 5
)

// FeedbackFunc collects human feedback on one task output. An empty string
// means no feedback.
type FeedbackFunc func(ctx context.Context, iteration int, out statex.TaskOutput) (string, error)

type TrainingEntry struct {
	Task      string `json:"task"`
	Output    string `json:"output"`
	Feedback  string `json:"feedback"`
	Iteration int    `json:"iteration"`
}

// TrainingData is keyed by agent role.
type TrainingData map[contractx.Role][]TrainingEntry

// Guidance returns the most recent non-empty feedback for role.
func (d TrainingData) Guidance(role contractx.Role) []string {
	var out []string
	for _, e := range d[role] {
		if fb := strings.TrimSpace(e.Feedback); fb != "" {
			out = append(out, fb)
		}
	}
	if len(out) > maxGuidancePerAgent {
		out = out[len(out)-maxGuidancePerAgent:]
	}
	return out
}

// LoadTrainingData reads a training file. A missing file yields empty data.
func LoadTrainingData(filename string) (TrainingData, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return TrainingData{}, nil
	}
	raw, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return TrainingData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read training file: %w", err)
	}
	data := TrainingData{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode training file %s: %w", filename, err)
	}
	if data == nil {
		data = TrainingData{}
	}
	return data, nil
}

func SaveTrainingData(filename string, data TrainingData) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create training directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode training data: %w", err)
	}
	if err := os.WriteFile(filename, raw, 0o644); err != nil {
		return fmt.Errorf("write training file: %w", err)
	}
	return nil
}

// Train runs the crew n times, asks for feedback on every task output and
// merges it into the training file.
func (c *Crew) Train(ctx context.Context, n int, inputs map[string]string, feedback FeedbackFunc, filename string) (TrainingData, error) {
	if n <= 0 {
		n = DefaultTrainingIterations
	}
	if strings.TrimSpace(filename) == "" {
		filename = DefaultTrainingFile
	}
	if feedback == nil {
		return nil, fmt.Errorf("%w: feedback function is required", contractx.ErrValidation)
	}

	data, err := LoadTrainingData(filename)
	if err != nil {
		return nil, err
	}

	for i := 1; i <= n; i++ {
		out, err := c.Kickoff(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("training iteration %d: %w", i, err)
		}
		for _, task := range out.Tasks {
			fb, err := feedback(ctx, i, task)
			if err != nil {
				return nil, fmt.Errorf("collect feedback for %s: %w", task.Name, err)
			}
			role := contractx.Role(task.Agent)
			data[role] = append(data[role], TrainingEntry{
				Task:      task.Name,
				Output:    task.Raw,
				Feedback:  strings.TrimSpace(fb),
				Iteration: i,
			})
		}
		log.Info().Str("crew", c.name).Int("iteration", i).Int("of", n).Msg("training iteration completed")
	}

	if err := SaveTrainingData(filename, data); err != nil {
		return nil, err
	}
	return data, nil
}
