package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	crewx "github.com/tanpawarit/voiceboard/agent/agents/crew"
	pipelinex "github.com/tanpawarit/voiceboard/agent/agents/pipeline"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
	statex "github.com/tanpawarit/voiceboard/agent/state"
	toolx "github.com/tanpawarit/voiceboard/agent/tool"
	openrouterx "github.com/tanpawarit/voiceboard/pkg/openrouter"
)

const memoryStoreDSN = "memory"

// Board is everything the commands need from the agent side.
type Board interface {
	contractx.Pipeline
	Check(ctx context.Context) []pipelinex.CheckResult
	Train(ctx context.Context, n int, filename string, feedback crewx.FeedbackFunc) (crewx.TrainingData, error)
	Replay(ctx context.Context, taskID string) (crewx.Output, error)
	Test(ctx context.Context, n int, evaluator crewx.Evaluator, model string) (crewx.TestReport, error)
	LatestKickoff(ctx context.Context) ([]statex.TaskOutput, error)
}

type app struct {
	in  *bufio.Reader
	out io.Writer

	llmErr       error
	trainingFile string

	newBoard     func(ctx context.Context) (Board, error)
	newEvaluator func(model string) (crewx.Evaluator, error)

	board   Board
	closers []io.Closer
}

func newApp(cfg *AppConfig, stdin io.Reader, stdout io.Writer) *app {
	a := &app{
		in:           bufio.NewReader(stdin),
		out:          stdout,
		llmErr:       cfg.LLM.Validate(),
		trainingFile: cfg.Crew.TrainingFile,
	}
	a.newBoard = func(ctx context.Context) (Board, error) {
		return a.buildBoard(ctx, cfg)
	}
	a.newEvaluator = func(model string) (crewx.Evaluator, error) {
		evalCfg := cfg.LLM.Evaluator(model)
		return crewx.NewOpenAIEvaluator(openrouterx.NewClient(evalCfg), evalCfg.Model)
	}
	return a
}

func (a *app) buildBoard(ctx context.Context, cfg *AppConfig) (Board, error) {
	prompts, err := promptx.LoadPromptSet()
	if err != nil {
		return nil, err
	}

	store, err := a.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	catalog := toolx.NewCatalog(cfg.Tools)
	registry, err := crewx.NewDefaultRegistry(prompts, crewx.OpenRouterModels(cfg.LLM), catalog, cfg.Crew)
	if err != nil {
		return nil, err
	}

	board, err := pipelinex.New(registry, prompts,
		pipelinex.WithStore(store),
		pipelinex.WithTools(catalog),
	)
	if err != nil {
		return nil, err
	}
	return board, nil
}

func (a *app) openStore(ctx context.Context, cfg statex.StoreConfig) (statex.Store, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.DSN), memoryStoreDSN) {
		return statex.NewMemoryStore(), nil
	}
	store, err := statex.NewBunStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open task output store: %w", err)
	}
	a.closers = append(a.closers, store)
	return store, nil
}

// loadBoard builds the board once. Commands that call the model refuse to
// start without LLM credentials.
func (a *app) loadBoard(ctx context.Context, needsModel bool) (Board, error) {
	if needsModel && a.llmErr != nil {
		return nil, a.llmErr
	}
	if a.board != nil {
		return a.board, nil
	}
	b, err := a.newBoard(ctx)
	if err != nil {
		return nil, err
	}
	a.board = b
	return b, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// readLine returns the next input line without its newline. ok is false at
// end of input.
func (a *app) readLine(prompt string) (string, bool) {
	if prompt != "" {
		fmt.Fprint(a.out, prompt)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}
