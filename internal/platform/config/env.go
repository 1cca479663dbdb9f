package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from process environment variables using its
// `env` struct tags. Evergrind variables carry the EVERGRIND_ prefix in
// the tags themselves, so callers pass a plain tagged struct pointer.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("load environment config: %w", err)
	}
	return nil
}
