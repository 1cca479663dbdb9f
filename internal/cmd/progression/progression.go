// Package progression parses progression command flags and launches the
// progression runtime.
package progression

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/evergrind/evergrind/internal/platform/cmd"
	progressionserver "github.com/evergrind/evergrind/internal/services/progression/app"
)

// Config holds progression command configuration.
type Config struct {
	Addr          string        `env:"EVERGRIND_ADDR"           envDefault:":8090"`
	DBPath        string        `env:"EVERGRIND_DB_PATH"        envDefault:"evergrind.db"`
	ContentPath   string        `env:"EVERGRIND_CONTENT_PATH"`
	NotifyTimeout time.Duration `env:"EVERGRIND_NOTIFY_TIMEOUT" envDefault:"2s"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.ContentPath, "content", cfg.ContentPath, "The content catalog YAML path (empty uses the embedded catalog)")
	fs.DurationVar(&cfg.NotifyTimeout, "notify-timeout", cfg.NotifyTimeout, "The post-commit notification delivery timeout")

	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the progression runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProgression, func(context.Context) error {
		return progressionserver.Run(ctx, progressionserver.Config{
			Addr:          cfg.Addr,
			DBPath:        cfg.DBPath,
			ContentPath:   cfg.ContentPath,
			NotifyTimeout: cfg.NotifyTimeout,
		})
	})
}
