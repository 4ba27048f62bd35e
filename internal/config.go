package internal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,required=true"`
	Port                 int           `env:"PORT,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	PublicBaseURL        string        `env:"PUBLIC_BASE_URL,required=true"`
	DomaAPIBase          string        `env:"DOMA_API_BASE,required=true"`
	DemoFallback         bool          `env:"DEMO_FALLBACK"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	SessionTokenSecret   string        `env:"SESSION_TOKEN_SECRET,required=true"`
	SessionTokenDuration time.Duration `env:"SESSION_TOKEN_DURATION,required=true"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetLogger builds a text slog logger at the configured level.
// Unknown levels fall back to info rather than failing startup.
func GetLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
