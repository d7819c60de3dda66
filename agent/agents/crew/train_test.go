package crew

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

func TestTrainWritesFeedbackPerAgent(t *testing.T) {
	t.Parallel()

	identifier := &fakeAgent{role: contractx.RolePersonaIdentifier, replies: []string{"personas"}}
	researcher := &fakeAgent{role: contractx.RoleVoiceResearcher, replies: []string{"voices"}}
	c, err := New("discovery", []contractx.Agent{identifier, researcher}, discoveryTasks())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	filename := filepath.Join(t.TempDir(), "trained.json")
	var asked []string
	feedback := func(ctx context.Context, iteration int, out statex.TaskOutput) (string, error) {
		asked = append(asked, out.Name)
		if out.Agent == string(contractx.RoleVoiceResearcher) {
			return "  quote them directly  ", nil
		}
		return "", nil
	}

	data, err := c.Train(context.Background(), 2, map[string]string{"startup_idea": "x"}, feedback, filename)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if len(asked) != 4 {
		t.Fatalf("expected feedback for 4 task outputs, got %d", len(asked))
	}
	if got := len(data[contractx.RoleVoiceResearcher]); got != 2 {
		t.Fatalf("expected 2 researcher entries, got %d", got)
	}

	loaded, err := LoadTrainingData(filename)
	if err != nil {
		t.Fatalf("LoadTrainingData() error = %v", err)
	}
	if diff := cmp.Diff(data, loaded); diff != "" {
		t.Fatalf("training file mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"quote them directly", "quote them directly"}, loaded.Guidance(contractx.RoleVoiceResearcher)); diff != "" {
		t.Fatalf("Guidance() mismatch (-want +got):\n%s", diff)
	}
	if got := loaded.Guidance(contractx.RolePersonaIdentifier); len(got) != 0 {
		t.Fatalf("empty feedback must not become guidance: %#v", got)
	}
}

func TestTrainMergesExistingFile(t *testing.T) {
	t.Parallel()

	filename := filepath.Join(t.TempDir(), "trained.json")
	if err := SaveTrainingData(filename, TrainingData{
		contractx.RolePersonaIdentifier: {{Task: "old", Feedback: "older lesson", Iteration: 1}},
	}); err != nil {
		t.Fatalf("SaveTrainingData() error = %v", err)
	}

	identifier := &fakeAgent{role: contractx.RolePersonaIdentifier}
	researcher := &fakeAgent{role: contractx.RoleVoiceResearcher}
	c, err := New("discovery", []contractx.Agent{identifier, researcher}, discoveryTasks())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	data, err := c.Train(context.Background(), 1, map[string]string{"startup_idea": "x"},
		func(context.Context, int, statex.TaskOutput) (string, error) { return "new lesson", nil }, filename)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if diff := cmp.Diff([]string{"older lesson", "new lesson"}, data.Guidance(contractx.RolePersonaIdentifier)); diff != "" {
		t.Fatalf("Guidance() mismatch (-want +got):\n%s", diff)
	}
}

func TestTrainFeedbackError(t *testing.T) {
	t.Parallel()

	identifier := &fakeAgent{role: contractx.RolePersonaIdentifier}
	researcher := &fakeAgent{role: contractx.RoleVoiceResearcher}
	c, err := New("discovery", []contractx.Agent{identifier, researcher}, discoveryTasks())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	filename := filepath.Join(t.TempDir(), "trained.json")
	stop := errors.New("stdin closed")
	_, err = c.Train(context.Background(), 1, map[string]string{"startup_idea": "x"},
		func(context.Context, int, statex.TaskOutput) (string, error) { return "", stop }, filename)
	if !errors.Is(err, stop) {
		t.Fatalf("expected feedback error, got %v", err)
	}
	if _, statErr := os.Stat(filename); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("training file must not be written on failure, stat err = %v", statErr)
	}
}

func TestGuidanceKeepsMostRecent(t *testing.T) {
	t.Parallel()

	var entries []TrainingEntry
	for _, fb := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		entries = append(entries, TrainingEntry{Feedback: fb})
	}
	data := TrainingData{contractx.RolePersonaConversant: entries}
	if diff := cmp.Diff([]string{"3", "4", "5", "6", "7"}, data.Guidance(contractx.RolePersonaConversant)); diff != "" {
		t.Fatalf("Guidance() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTrainingDataMissingFile(t *testing.T) {
	t.Parallel()

	data, err := LoadTrainingData(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadTrainingData() error = %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty data, got %#v", data)
	}
}

func TestLoadTrainingDataCorrupt(t *testing.T) {
	t.Parallel()

	filename := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(filename, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTrainingData(filename); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadTrainingDataNull(t *testing.T) {
	t.Parallel()

	filename := filepath.Join(t.TempDir(), "null.json")
	if err := os.WriteFile(filename, []byte("null"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := LoadTrainingData(filename)
	if err != nil {
		t.Fatalf("LoadTrainingData() error = %v", err)
	}
	if data == nil {
		t.Fatal("LoadTrainingData() returned a nil map")
	}
	data[contractx.RoleVoiceResearcher] = append(data[contractx.RoleVoiceResearcher], TrainingEntry{Feedback: "cite sources"})
	if got := data.Guidance(contractx.RoleVoiceResearcher); len(got) != 1 {
		t.Fatalf("Guidance() = %v", got)
	}
}
