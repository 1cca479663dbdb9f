// Package seed validates a content catalog and prepares a progression
// database for local development.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	entrypoint "github.com/evergrind/evergrind/internal/platform/cmd"
	"github.com/evergrind/evergrind/internal/services/progression/content"
	"github.com/evergrind/evergrind/internal/services/progression/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	ContentPath string `env:"EVERGRIND_CONTENT_PATH"`
	DBPath      string `env:"EVERGRIND_DB_PATH"`
	CheckOnly   bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.ContentPath, "content", cfg.ContentPath, "The content catalog YAML path (empty uses the embedded catalog)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path to initialize")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Validate the catalog without touching a database")

	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run validates the configured catalog, prints its shape, and unless running
// in check-only mode creates the database schema at the configured path.
func Run(_ context.Context, cfg Config, out io.Writer) error {
	catalog, err := loadCatalog(cfg.ContentPath)
	if err != nil {
		return fmt.Errorf("load content catalog: %w", err)
	}

	tree := catalog.Graph
	fmt.Fprintf(out, "catalog ok: %d character levels, %d stat levels\n",
		len(catalog.Ledger.CharacterThresholds()), len(catalog.Ledger.StatThresholds()))
	fmt.Fprintf(out, "tree: %d nodes, %d edges (origin %s)\n",
		len(tree.Nodes()), len(tree.Edges()), tree.Origin().Code)
	fmt.Fprintf(out, "skills: %d, activity types: %d\n",
		len(catalog.Skills), len(catalog.Activities.Types()))

	if cfg.CheckOnly {
		return nil
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("database path is required unless -check is set")
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	fmt.Fprintf(out, "database ready at %s\n", cfg.DBPath)
	return nil
}

func loadCatalog(path string) (content.Bundle, error) {
	if strings.TrimSpace(path) == "" {
		return content.Default()
	}
	return content.Load(path)
}
