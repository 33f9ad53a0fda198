// Package config provides an optional env-driven bootstrap for the SDK's
// Config/Opts, adapted from _examples/adred-codev-ws_poc/ws/config.go's
// caarlos0/env + godotenv pattern ("ENV vars > .env file > defaults"). The
// typed constructor (relayx.NewClient(Config{...})) remains the primary,
// required path; this exists for examples and integration tests that want
// to source credentials from the environment instead of hardcoding them.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env mirrors the fields relayx.Config and relayx.Opts recognize.
type Env struct {
	APIKey     string `env:"RELAYX_API_KEY,required"`
	Secret     string `env:"RELAYX_SECRET,required"`
	Staging    bool   `env:"RELAYX_STAGING" envDefault:"false"`
	Debug      bool   `env:"RELAYX_DEBUG" envDefault:"false"`
	MaxRetries int    `env:"RELAYX_MAX_RETRIES" envDefault:"5"`
}

// FromEnv loads an optional .env file (ignored if absent) and then parses
// environment variables into an Env, validating that the required
// credential fields are present.
func FromEnv() (Env, error) {
	_ = godotenv.Load()

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parsing relayx environment config: %w", err)
	}
	return e, nil
}
