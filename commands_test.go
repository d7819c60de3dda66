package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	crewx "github.com/tanpawarit/voiceboard/agent/agents/crew"
	pipelinex "github.com/tanpawarit/voiceboard/agent/agents/pipeline"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	llmx "github.com/tanpawarit/voiceboard/agent/llm"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

type fakeBoard struct {
	personas     []contractx.Persona
	discoverErrs []error
	replies      []string

	discoverCalls []contractx.DiscoveryInput
	converseCalls []contractx.ConversationInput
	followUpCalls []contractx.FollowUpInput
	trainCalls    int
	trainFile     string
	feedback      []string
	replayIDs     []string
	testN         int
	testModel     string
	checks        []pipelinex.CheckResult
}

func (f *fakeBoard) Discover(_ context.Context, in contractx.DiscoveryInput) (contractx.DiscoveryResult, error) {
	f.discoverCalls = append(f.discoverCalls, in)
	if n := len(f.discoverCalls); n <= len(f.discoverErrs) && f.discoverErrs[n-1] != nil {
		return contractx.DiscoveryResult{}, f.discoverErrs[n-1]
	}
	return contractx.DiscoveryResult{Result: contractx.Result{Raw: "raw discovery"}, Personas: f.personas}, nil
}

func (f *fakeBoard) nextReply() string {
	n := len(f.converseCalls) + len(f.followUpCalls)
	if n-1 < len(f.replies) {
		return f.replies[n-1]
	}
	return "reply"
}

func (f *fakeBoard) Converse(_ context.Context, in contractx.ConversationInput) (contractx.Result, error) {
	f.converseCalls = append(f.converseCalls, in)
	return contractx.Result{Raw: f.nextReply()}, nil
}

func (f *fakeBoard) FollowUp(_ context.Context, in contractx.FollowUpInput) (contractx.Result, error) {
	f.followUpCalls = append(f.followUpCalls, in)
	return contractx.Result{Raw: f.nextReply()}, nil
}

func (f *fakeBoard) Check(context.Context) []pipelinex.CheckResult {
	return f.checks
}

func (f *fakeBoard) Train(ctx context.Context, n int, filename string, feedback crewx.FeedbackFunc) (crewx.TrainingData, error) {
	f.trainCalls = n
	f.trainFile = filename
	for i := 0; i < n; i++ {
		fb, err := feedback(ctx, i, statex.TaskOutput{Name: "voice_research_task", Raw: "draft"})
		if err != nil {
			return nil, err
		}
		f.feedback = append(f.feedback, fb)
	}
	return crewx.TrainingData{}, nil
}

func (f *fakeBoard) Replay(_ context.Context, taskID string) (crewx.Output, error) {
	f.replayIDs = append(f.replayIDs, taskID)
	return crewx.Output{Raw: "replayed"}, nil
}

func (f *fakeBoard) Test(_ context.Context, n int, _ crewx.Evaluator, model string) (crewx.TestReport, error) {
	f.testN = n
	f.testModel = model
	return crewx.TestReport{
		Crew:       pipelinex.CrewDiscovery,
		Model:      model,
		Iterations: n,
		Tasks:      []string{"persona_identification_task"},
		Scores:     map[string][]float64{"persona_identification_task": {7, 8}},
	}, nil
}

func (f *fakeBoard) LatestKickoff(context.Context) ([]statex.TaskOutput, error) {
	return nil, statex.ErrTaskNotFound
}

type fakeEvaluator struct{}

func (fakeEvaluator) Score(context.Context, promptx.TaskDef, string) (float64, error) {
	return 5, nil
}

type testApp struct {
	*app
	out    *bytes.Buffer
	board  *fakeBoard
	builds int
	models []string
}

func newTestApp(input string, board *fakeBoard) *testApp {
	out := &bytes.Buffer{}
	ta := &testApp{out: out, board: board}
	ta.app = &app{
		in:           bufio.NewReader(strings.NewReader(input)),
		out:          out,
		trainingFile: crewx.DefaultTrainingFile,
	}
	ta.app.newBoard = func(context.Context) (Board, error) {
		ta.builds++
		return board, nil
	}
	ta.app.newEvaluator = func(model string) (crewx.Evaluator, error) {
		ta.models = append(ta.models, model)
		return fakeEvaluator{}, nil
	}
	return ta
}

func TestLookupRoutesTestByArguments(t *testing.T) {
	check, err := lookup("test", nil)
	if err != nil {
		t.Fatalf("lookup test: %v", err)
	}
	if check.usage != "test" {
		t.Fatalf("bare test routed to %q", check.usage)
	}

	eval, err := lookup("test", []string{"3", "gpt-4o"})
	if err != nil {
		t.Fatalf("lookup test 3: %v", err)
	}
	if !strings.HasPrefix(eval.usage, "test <iterations>") {
		t.Fatalf("test with args routed to %q", eval.usage)
	}

	if _, err := lookup("--help", nil); err != nil {
		t.Fatalf("lookup --help: %v", err)
	}
	if _, err := lookup("bogus", nil); !errors.Is(err, contractx.ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	ta := newTestApp("", &fakeBoard{})

	code := dispatch(context.Background(), ta.app, []string{"bogus"})
	if code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(ta.out.String(), "Unknown command: bogus") || !strings.Contains(ta.out.String(), "Usage:") {
		t.Fatalf("unexpected output: %q", ta.out.String())
	}
}

func TestDispatchHelp(t *testing.T) {
	for _, arg := range []string{"help", "-h", "--help"} {
		ta := newTestApp("", &fakeBoard{})
		if code := dispatch(context.Background(), ta.app, []string{arg}); code != exitOK {
			t.Fatalf("%s: expected exit 0, got %d", arg, code)
		}
		if !strings.Contains(ta.out.String(), "replay <task_id>") {
			t.Fatalf("%s: usage missing commands: %q", arg, ta.out.String())
		}
	}
}

func TestReplayWithoutTaskIDPrintsUsage(t *testing.T) {
	ta := newTestApp("", &fakeBoard{})

	code := dispatch(context.Background(), ta.app, []string{"replay"})
	if code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
	if ta.builds != 0 {
		t.Fatalf("replay without id must not build the board")
	}
	if !strings.Contains(ta.out.String(), "Usage:") {
		t.Fatalf("expected usage, got %q", ta.out.String())
	}
}

func TestReplayRunsTask(t *testing.T) {
	board := &fakeBoard{}
	ta := newTestApp("", board)

	if code := dispatch(context.Background(), ta.app, []string{"replay", "task-1"}); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, ta.out.String())
	}
	if diff := cmp.Diff([]string{"task-1"}, board.replayIDs); diff != "" {
		t.Fatalf("replay ids mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(ta.out.String(), "replayed") {
		t.Fatalf("expected replay output, got %q", ta.out.String())
	}
}

func TestCheckExitsZeroOnFailures(t *testing.T) {
	board := &fakeBoard{checks: []pipelinex.CheckResult{
		{Name: "SERPER_API_KEY", Status: pipelinex.CheckWarn, Detail: "not found"},
		{Name: "Conversation agent", Status: pipelinex.CheckPass, Detail: "created"},
	}}
	ta := newTestApp("", board)
	ta.llmErr = errors.New("LLM_API_KEY is not set")

	for _, args := range [][]string{{"check"}, {"test"}} {
		ta.out.Reset()
		if code := dispatch(context.Background(), ta.app, args); code != exitOK {
			t.Fatalf("%v: expected exit 0, got %d", args, code)
		}
		out := ta.out.String()
		for _, want := range []string{"❌ LLM configuration", "⚠️ SERPER_API_KEY", "✅ Conversation agent"} {
			if !strings.Contains(out, want) {
				t.Fatalf("%v: output missing %q:\n%s", args, want, out)
			}
		}
	}
}

func TestEvaluateCommand(t *testing.T) {
	board := &fakeBoard{}
	ta := newTestApp("", board)

	if code := dispatch(context.Background(), ta.app, []string{"test", "2", "gpt-4o"}); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, ta.out.String())
	}
	if board.testN != 2 || board.testModel != "gpt-4o" {
		t.Fatalf("unexpected test call n=%d model=%q", board.testN, board.testModel)
	}
	if diff := cmp.Diff([]string{"gpt-4o"}, ta.models); diff != "" {
		t.Fatalf("evaluator models mismatch (-want +got):\n%s", diff)
	}
	out := ta.out.String()
	for _, want := range []string{"persona_identification_task", "7.0", "8.0", "7.5", "Avg"} {
		if !strings.Contains(out, want) {
			t.Fatalf("score table missing %q:\n%s", want, out)
		}
	}
}

func TestEvaluateDefaultsModel(t *testing.T) {
	board := &fakeBoard{}
	ta := newTestApp("", board)

	if code := dispatch(context.Background(), ta.app, []string{"test", "1"}); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if board.testModel != llmx.DefaultEvaluatorModel {
		t.Fatalf("expected default evaluator model, got %q", board.testModel)
	}
}

func TestEvaluateRejectsBadIterations(t *testing.T) {
	ta := newTestApp("", &fakeBoard{})
	if code := dispatch(context.Background(), ta.app, []string{"test", "many"}); code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
}

func TestModelCommandsRequireLLMConfig(t *testing.T) {
	ta := newTestApp("", &fakeBoard{})
	ta.llmErr = contractx.ErrConfigurationMissing

	if code := dispatch(context.Background(), ta.app, []string{"run"}); code != exitError {
		t.Fatalf("expected exit %d, got %d", exitError, code)
	}
	if ta.builds != 0 {
		t.Fatalf("board must not be built without LLM config")
	}
}

func TestTrainReadsFeedback(t *testing.T) {
	board := &fakeBoard{}
	ta := newTestApp("be blunter\n\n", board)

	if code := dispatch(context.Background(), ta.app, []string{"train", "2", "lessons.json"}); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, ta.out.String())
	}
	if board.trainCalls != 2 || board.trainFile != "lessons.json" {
		t.Fatalf("unexpected train call n=%d file=%q", board.trainCalls, board.trainFile)
	}
	if diff := cmp.Diff([]string{"be blunter", ""}, board.feedback); diff != "" {
		t.Fatalf("feedback mismatch (-want +got):\n%s", diff)
	}
}

func TestTrainDefaults(t *testing.T) {
	board := &fakeBoard{}
	ta := newTestApp("a\nb\n", board)

	if code := dispatch(context.Background(), ta.app, []string{"train"}); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if board.trainCalls != 2 || board.trainFile != crewx.DefaultTrainingFile {
		t.Fatalf("unexpected defaults n=%d file=%q", board.trainCalls, board.trainFile)
	}
}

func TestRunPrintsDiscovery(t *testing.T) {
	cuban := contractx.NewPersona("Mark Cuban", "Hates vague plans")
	cuban.Voice = "Blunt, asks about sales first"
	board := &fakeBoard{personas: []contractx.Persona{cuban}}
	ta := newTestApp("", board)

	if code := dispatch(context.Background(), ta.app, []string{"run"}); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(board.discoverCalls) != 1 || board.discoverCalls[0].StartupIdea != pipelinex.ExampleIdea {
		t.Fatalf("unexpected discover calls: %+v", board.discoverCalls)
	}
	out := ta.out.String()
	if !strings.Contains(out, "raw discovery") || !strings.Contains(out, "1. Mark Cuban") || !strings.Contains(out, "Blunt, asks about sales first") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestDemoRunsScriptedTurns(t *testing.T) {
	board := &fakeBoard{
		personas: []contractx.Persona{contractx.NewPersona("Barbara Corcoran", "")},
		replies:  []string{"Who is your customer?", "Price it higher."},
	}
	ta := newTestApp("", board)

	if code := dispatch(context.Background(), ta.app, []string{"demo"}); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, ta.out.String())
	}
	if len(board.converseCalls) != 1 || len(board.followUpCalls) != 1 {
		t.Fatalf("expected one first turn and one follow-up, got %d and %d", len(board.converseCalls), len(board.followUpCalls))
	}
	if board.followUpCalls[0].SelectedPersonaName != "Barbara Corcoran" {
		t.Fatalf("unexpected persona: %q", board.followUpCalls[0].SelectedPersonaName)
	}
	if !strings.Contains(ta.out.String(), "Price it higher.") {
		t.Fatalf("missing follow-up reply:\n%s", ta.out.String())
	}
}

func TestInteractiveSession(t *testing.T) {
	board := &fakeBoard{
		personas: []contractx.Persona{
			contractx.NewPersona("Kevin O'Leary", ""),
			contractx.NewPersona("Mark Cuban", ""),
		},
		replies: []string{"Show me the royalties.", "Still not convinced."},
	}
	input := strings.Join([]string{
		"   ",
		"Drone delivery for pizza",
		"second",
		"It makes money on day one.",
		"",
		"We own the drones.",
		"quit",
	}, "\n") + "\n"
	ta := newTestApp(input, board)

	if code := dispatch(context.Background(), ta.app, nil); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}

	if diff := cmp.Diff([]contractx.DiscoveryInput{{StartupIdea: "Drone delivery for pizza"}}, board.discoverCalls); diff != "" {
		t.Fatalf("discover calls mismatch (-want +got):\n%s", diff)
	}
	wantFirst := []contractx.ConversationInput{{
		SelectedPersonaName: "Kevin O'Leary",
		UserMessage:         "It makes money on day one.",
		StartupIdea:         "Drone delivery for pizza",
	}}
	if diff := cmp.Diff(wantFirst, board.converseCalls); diff != "" {
		t.Fatalf("converse calls mismatch (-want +got):\n%s", diff)
	}
	wantFollow := []contractx.FollowUpInput{{
		SelectedPersonaName: "Kevin O'Leary",
		UserResponse:        "We own the drones.",
		ConversationHistory: "User: It makes money on day one.\nKevin O'Leary: Show me the royalties.\n",
	}}
	if diff := cmp.Diff(wantFollow, board.followUpCalls); diff != "" {
		t.Fatalf("follow-up calls mismatch (-want +got):\n%s", diff)
	}

	out := ta.out.String()
	for _, want := range []string{"Please enter a startup idea.", "Still not convinced.", "Thanks for pitching"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInteractiveRetriesFailedDiscovery(t *testing.T) {
	board := &fakeBoard{
		personas:     []contractx.Persona{contractx.NewPersona("Sara Blakely", "")},
		discoverErrs: []error{errors.New("provider down")},
	}
	ta := newTestApp("Idea one\nIdea two\n1\nq\n", board)

	if code := dispatch(context.Background(), ta.app, nil); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(board.discoverCalls) != 2 {
		t.Fatalf("expected two discovery attempts, got %d", len(board.discoverCalls))
	}
	if !strings.Contains(ta.out.String(), "provider down") {
		t.Fatalf("expected failure to be shown:\n%s", ta.out.String())
	}
	if len(board.converseCalls) != 0 {
		t.Fatalf("quit before any message must not delegate")
	}
}

func TestInteractiveQuitAtIdeaPrompt(t *testing.T) {
	board := &fakeBoard{}
	ta := newTestApp("exit\n", board)

	if code := dispatch(context.Background(), ta.app, nil); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(board.discoverCalls) != 0 {
		t.Fatalf("quit must not start discovery")
	}
}
