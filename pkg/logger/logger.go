package logx

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	File         string `split_words:"true"`
	MaxSizeMB    int    `envconfig:"MAX_SIZE_MB" default:"10"`
	MaxBackups   int    `split_words:"true" default:"3"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init configures the global zerolog logger. With File set, JSON logs go to
// a rotated file so an interactive console only shows the conversation.
func Init(opts ...Config) {
	conf := safe(opts...)

	log.Logger = zerolog.New(writer(conf)).With().Timestamp().Logger()

	if conf.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
}

func writer(conf *Config) io.Writer {
	if path := strings.TrimSpace(conf.File); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positiveOr(conf.MaxSizeMB, 10),
			MaxBackups: positiveOr(conf.MaxBackups, 3),
			MaxAge:     28,
			Compress:   true,
		}
	}
	if conf.PrettyFormat {
		return zerolog.NewConsoleWriter()
	}
	return os.Stdout
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
