package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesToFile(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	path := filepath.Join(t.TempDir(), "logs", "voiceboard.log")
	Init(Config{Debug: true, File: path})

	if log.Logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %s, want debug", log.Logger.GetLevel())
	}

	log.Info().Str("component", "test").Msg("hello file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello file"`) {
		t.Fatalf("log file missing message: %s", data)
	}
}

func TestInitDefaultsToInfo(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	Init()
	if log.Logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", log.Logger.GetLevel())
	}
}
