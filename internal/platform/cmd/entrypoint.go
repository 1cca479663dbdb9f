// Package cmd holds the shared startup plumbing for the evergrind
// binaries: env-then-flag config parsing and the telemetry-wrapped run
// loop that every command funnels through.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/evergrind/evergrind/internal/platform/config"
	"github.com/evergrind/evergrind/internal/platform/otel"
)

// otelShutdownTimeout bounds the final span flush on process exit.
const otelShutdownTimeout = 5 * time.Second

// Service names reported to telemetry at startup.
const (
	ServiceProgression = "progression"
	ServiceSeed        = "seed"
)

// ParseConfig loads environment defaults into cfg. Flags parsed afterwards
// with ParseArgs override the env values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for the named service, executes run, and
// flushes telemetry on the way out. Tracing setup failure aborts the run;
// shutdown failure is only logged.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
