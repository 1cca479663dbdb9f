package app

import (
	"context"
	"strings"
	"testing"
)

func TestRunRequiresDatabasePath(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), Config{DBPath: "  "})
	if err == nil || !strings.Contains(err.Error(), "database path is required") {
		t.Fatalf("Run error = %v, want database path validation", err)
	}
}

func TestRunRejectsMissingContentFile(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), Config{
		DBPath:      t.TempDir() + "/progression.db",
		ContentPath: t.TempDir() + "/missing.yaml",
	})
	if err == nil || !strings.Contains(err.Error(), "load content catalog") {
		t.Fatalf("Run error = %v, want content catalog error", err)
	}
}

