package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	crewx "github.com/tanpawarit/voiceboard/agent/agents/crew"
	llmx "github.com/tanpawarit/voiceboard/agent/llm"
	statex "github.com/tanpawarit/voiceboard/agent/state"
	toolx "github.com/tanpawarit/voiceboard/agent/tool"
	configx "github.com/tanpawarit/voiceboard/pkg/config"
	logx "github.com/tanpawarit/voiceboard/pkg/logger"
	"github.com/tanpawarit/voiceboard/pkg/telemetry"
)

const defaultInteractiveLogFile = "logs/voiceboard.log"

type AppConfig struct {
	Log       logx.Config
	LLM       llmx.Config
	Tools     toolx.Config
	Store     statex.StoreConfig
	Telemetry telemetry.Config
	Crew      crewx.Config
}

func main() {
	envFile := flag.String("env", "", "path to an env file (default ./.env when present)")
	flag.Usage = func() {
		printUsage(os.Stderr)
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run(flag.Args(), *envFile, os.Stdin, os.Stdout))
}

func run(args []string, envFile string, stdin io.Reader, stdout io.Writer) int {
	cfg, err := loadConfig(envFile)
	if err != nil {
		fmt.Fprintf(stdout, "❌ Failed to load configuration: %v\n", err)
		return 1
	}

	if len(args) == 0 && strings.TrimSpace(cfg.Log.File) == "" {
		cfg.Log.File = defaultInteractiveLogFile
	}
	logx.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	a := newApp(cfg, stdin, stdout)
	defer a.close()

	return dispatch(ctx, a, args)
}

func loadConfig(envFile string) (*AppConfig, error) {
	opts := []configx.Option{configx.WithEnvFile(envFile)}

	logCfg, err := configx.New[logx.Config]("LOG", opts...)
	if err != nil {
		return nil, fmt.Errorf("log config: %w", err)
	}
	llmCfg, err := configx.New[llmx.Config]("LLM", opts...)
	if err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	toolCfg, err := configx.New[toolx.Config]("", opts...)
	if err != nil {
		return nil, fmt.Errorf("tool config: %w", err)
	}
	storeCfg, err := configx.New[statex.StoreConfig]("STORE", opts...)
	if err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}
	telemetryCfg, err := configx.New[telemetry.Config]("TELEMETRY", opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry config: %w", err)
	}
	crewCfg, err := configx.New[crewx.Config]("CREW", opts...)
	if err != nil {
		return nil, fmt.Errorf("crew config: %w", err)
	}

	return &AppConfig{
		Log:       *logCfg,
		LLM:       *llmCfg,
		Tools:     *toolCfg,
		Store:     *storeCfg,
		Telemetry: *telemetryCfg,
		Crew:      *crewCfg,
	}, nil
}
