package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"
	crewx "github.com/tanpawarit/voiceboard/agent/agents/crew"
	pipelinex "github.com/tanpawarit/voiceboard/agent/agents/pipeline"
	sessionx "github.com/tanpawarit/voiceboard/agent/agents/session"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	llmx "github.com/tanpawarit/voiceboard/agent/llm"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type command struct {
	name    string
	aliases []string
	usage   string
	// match reports whether the command accepts these arguments. nil accepts
	// anything.
	match func(args []string) bool
	run   func(ctx context.Context, a *app, args []string) int
}

var commands []command

func init() {
	commands = []command{
		{name: "help", aliases: []string{"-h", "--help"}, usage: "help", run: runHelp},
		{name: "check", usage: "check", run: runCheck},
		{name: "test", usage: "test", match: noArgs, run: runCheck},
		{name: "test", usage: "test <iterations> [llm=" + llmx.DefaultEvaluatorModel + "]", run: runEvaluate},
		{name: "run", usage: "run", run: runExample},
		{name: "demo", usage: "demo", run: runDemo},
		{name: "train", usage: "train [iterations=2] [filename=" + crewx.DefaultTrainingFile + "]", run: runTrain},
		{name: "replay", usage: "replay <task_id>", run: runReplay},
	}
}

func noArgs(args []string) bool { return len(args) == 0 }

// lookup finds the command for args[0], honouring per-entry argument matchers.
func lookup(name string, args []string) (command, error) {
	for _, c := range commands {
		if c.name != name && !containsString(c.aliases, name) {
			continue
		}
		if c.match != nil && !c.match(args) {
			continue
		}
		return c, nil
	}
	return command{}, fmt.Errorf("%w: %s", contractx.ErrUnknownCommand, name)
}

func dispatch(ctx context.Context, a *app, args []string) int {
	if len(args) == 0 {
		return runInteractive(ctx, a)
	}

	cmd, err := lookup(args[0], args[1:])
	if err != nil {
		fmt.Fprintf(a.out, "❌ Unknown command: %s\n\n", args[0])
		printUsage(a.out)
		return exitUsage
	}

	log.Debug().Str("command", cmd.name).Strs("args", args[1:]).Msg("dispatching command")
	return cmd.run(ctx, a, args[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: voiceboard [-env FILE] [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "With no command an interactive session starts.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

func runHelp(_ context.Context, a *app, _ []string) int {
	printUsage(a.out)
	return exitOK
}

func runCheck(ctx context.Context, a *app, _ []string) int {
	fmt.Fprintln(a.out, titleStyle.Render("🔍 Checking voiceboard setup"))

	var results []pipelinex.CheckResult
	if a.llmErr != nil {
		results = append(results, pipelinex.CheckResult{Name: "LLM configuration", Status: pipelinex.CheckFail, Detail: a.llmErr.Error()})
	} else {
		results = append(results, pipelinex.CheckResult{Name: "LLM configuration", Status: pipelinex.CheckPass, Detail: "valid"})
	}

	board, err := a.loadBoard(ctx, false)
	if err != nil {
		results = append(results, pipelinex.CheckResult{Name: "Agent registry", Status: pipelinex.CheckFail, Detail: err.Error()})
	} else {
		results = append(results, board.Check(ctx)...)
	}

	for _, r := range results {
		fmt.Fprintf(a.out, "%s %s: %s\n", statusIcon(r.Status), r.Name, r.Detail)
	}
	if pipelinex.Passed(results) {
		fmt.Fprintln(a.out, successStyle.Render("🎉 All checks passed"))
	} else {
		fmt.Fprintln(a.out, errorStyle.Render("Some checks failed; see above"))
	}
	return exitOK
}

func statusIcon(s pipelinex.CheckStatus) string {
	switch s {
	case pipelinex.CheckPass:
		return "✅"
	case pipelinex.CheckWarn:
		return "⚠️"
	default:
		return "❌"
	}
}

func runExample(ctx context.Context, a *app, _ []string) int {
	board, err := a.loadBoard(ctx, true)
	if err != nil {
		return a.fail("Failed to start", err)
	}

	fmt.Fprintf(a.out, "🚀 Discovering personas for: %s\n\n", pipelinex.ExampleIdea)
	res, err := board.Discover(ctx, contractx.DiscoveryInput{StartupIdea: pipelinex.ExampleIdea})
	if err != nil {
		return a.fail("Discovery failed", err)
	}

	fmt.Fprintln(a.out, res.Raw)
	fmt.Fprintln(a.out)
	printPersonas(a.out, res.Personas)
	a.printTaskIDs(ctx, board)
	return exitOK
}

func runDemo(ctx context.Context, a *app, _ []string) int {
	board, err := a.loadBoard(ctx, true)
	if err != nil {
		return a.fail("Failed to start", err)
	}
	ctrl, err := sessionx.New(board)
	if err != nil {
		return a.fail("Failed to start", err)
	}

	fmt.Fprintf(a.out, "💡 Idea: %s\n\n", pipelinex.ExampleIdea)
	s, candidates, err := ctrl.StartSession(ctx, pipelinex.ExampleIdea)
	if err != nil {
		return a.fail("Discovery failed", err)
	}
	printPersonas(a.out, candidates)

	persona := ctrl.SelectPersona(candidates, 1)
	if err := s.ChoosePersona(persona); err != nil {
		return a.fail("Persona selection failed", err)
	}
	fmt.Fprintf(a.out, "\n🎭 Talking to %s\n\n", personaStyle.Render(persona.Name))

	for _, line := range demoScript {
		fmt.Fprintf(a.out, "%s %s\n\n", userStyle.Render("You:"), line)
		turn, err := ctrl.RunTurn(ctx, s, line)
		if err != nil {
			return a.fail("Turn failed", err)
		}
		fmt.Fprintf(a.out, "%s %s\n\n", personaStyle.Render(persona.Name+":"), turn.Text)
	}
	s.End()
	return exitOK
}

var demoScript = []string{
	"We already have 2,000 families on the waitlist and a grocery partner lined up for the pilot.",
	"Fair point. How would you price it so the grocery partner doesn't eat our margin?",
}

func runTrain(ctx context.Context, a *app, args []string) int {
	n := 2
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(a.out, "❌ Invalid iterations: %s\n", args[0])
			return exitUsage
		}
		n = v
	}
	filename := a.trainingFile
	if len(args) > 1 {
		filename = args[1]
	}

	board, err := a.loadBoard(ctx, true)
	if err != nil {
		return a.fail("Failed to start", err)
	}

	fmt.Fprintf(a.out, "🏋️ Training the discovery crew for %d iteration(s)\n", n)
	_, err = board.Train(ctx, n, filename, a.promptFeedback)
	if err != nil {
		return a.fail("Training failed", err)
	}
	fmt.Fprintf(a.out, "✅ Training data saved to %s\n", filename)
	return exitOK
}

// promptFeedback shows a task output and reads one line of feedback.
func (a *app) promptFeedback(_ context.Context, iteration int, out statex.TaskOutput) (string, error) {
	fmt.Fprintf(a.out, "\n--- iteration %d, %s (%s) ---\n%s\n", iteration, out.Name, out.Agent, out.Raw)
	line, ok := a.readLine("📝 Feedback (blank to skip): ")
	if !ok {
		return "", io.EOF
	}
	return strings.TrimSpace(line), nil
}

func runReplay(ctx context.Context, a *app, args []string) int {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(a.out, "❌ replay needs a task id")
		printUsage(a.out)
		return exitUsage
	}

	board, err := a.loadBoard(ctx, true)
	if err != nil {
		return a.fail("Failed to start", err)
	}

	fmt.Fprintf(a.out, "🔁 Replaying from task %s\n\n", args[0])
	out, err := board.Replay(ctx, args[0])
	if err != nil {
		return a.fail("Replay failed", err)
	}
	fmt.Fprintln(a.out, out.Raw)
	a.printTaskIDs(ctx, board)
	return exitOK
}

func runEvaluate(ctx context.Context, a *app, args []string) int {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Fprintf(a.out, "❌ Invalid iterations: %s\n", args[0])
		printUsage(a.out)
		return exitUsage
	}
	model := llmx.DefaultEvaluatorModel
	if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		model = strings.TrimSpace(args[1])
	}

	board, err := a.loadBoard(ctx, true)
	if err != nil {
		return a.fail("Failed to start", err)
	}
	evaluator, err := a.newEvaluator(model)
	if err != nil {
		return a.fail("Failed to build evaluator", err)
	}

	fmt.Fprintf(a.out, "🧪 Testing the discovery crew for %d iteration(s) with %s\n\n", n, model)
	report, err := board.Test(ctx, n, evaluator, model)
	if err != nil {
		return a.fail("Test failed", err)
	}
	fmt.Fprintln(a.out, scoreTable(report))
	return exitOK
}

// scoreTable renders one row per task with a column per iteration.
func scoreTable(r crewx.TestReport) string {
	headers := []string{"Task"}
	for i := 1; i <= r.Iterations; i++ {
		headers = append(headers, fmt.Sprintf("Run %d", i))
	}
	headers = append(headers, "Avg")

	rows := make([][]string, 0, len(r.Tasks)+1)
	for _, task := range r.Tasks {
		row := []string{task}
		scores := r.Scores[task]
		for i := 0; i < r.Iterations; i++ {
			if i < len(scores) {
				row = append(row, fmt.Sprintf("%.1f", scores[i]))
			} else {
				row = append(row, "-")
			}
		}
		row = append(row, fmt.Sprintf("%.1f", r.Average(task)))
		rows = append(rows, row)
	}
	overall := make([]string, len(headers))
	overall[0] = "Crew"
	overall[len(overall)-1] = fmt.Sprintf("%.1f", r.Overall())
	rows = append(rows, overall)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		String()
}

func printPersonas(w io.Writer, personas []contractx.Persona) {
	fmt.Fprintln(w, titleStyle.Render("🎯 Personas who would challenge this idea:"))
	for i, p := range personas {
		fmt.Fprintf(w, "  %d. %s", i+1, personaStyle.Render(p.Name))
		if p.Summary != "" {
			fmt.Fprintf(w, " - %s", p.Summary)
		}
		fmt.Fprintln(w)
		if p.Voice != "" {
			fmt.Fprintln(w, mutedStyle.Render("     🗣️ "+p.Voice))
		}
	}
}

func (a *app) printTaskIDs(ctx context.Context, board Board) {
	outs, err := board.LatestKickoff(ctx)
	if err != nil {
		if !errors.Is(err, statex.ErrTaskNotFound) {
			log.Warn().Err(err).Msg("could not list stored task outputs")
		}
		return
	}
	fmt.Fprintln(a.out, mutedStyle.Render("\nTask ids (use with replay):"))
	for _, o := range outs {
		fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("  %s  %s", o.TaskID, o.Name)))
	}
}

func (a *app) fail(msg string, err error) int {
	log.Error().Err(err).Msg(msg)
	fmt.Fprintf(a.out, "❌ %s: %v\n", msg, err)
	return exitError
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
