package forge

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the engine's process-wide settings. Values come from the
// environment; zero-value fields fall back to the defaults below.
type Config struct {
	TemplatesDir string `env:"FORGE_TEMPLATES_DIR" envDefault:"templates"`
	PreviewsDir  string `env:"FORGE_PREVIEWS_DIR" envDefault:"previews"`
	TempDir      string `env:"FORGE_TEMP_DIR" envDefault:"temp"`
	LibraryDir   string `env:"FORGE_LIBRARY_DIR" envDefault:"library"`

	MaxConcurrentBuilds int           `env:"FORGE_MAX_CONCURRENT_BUILDS" envDefault:"2"`
	QueueCapacity       int           `env:"FORGE_QUEUE_CAPACITY" envDefault:"20"`
	BuildTimeout        time.Duration `env:"FORGE_BUILD_TIMEOUT" envDefault:"120s"`

	// FastTest skips real compilation and synthesizes a placeholder
	// artifact. Used by the surrounding system's integration tests.
	FastTest bool `env:"BUILDER_FAST_TEST"`

	Port int `env:"PORT" envDefault:"3000"`
}

// ConfigFromEnv parses the environment into a Config.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("forge: parse env: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no environment is
// present, primarily for tests and embedding callers.
func DefaultConfig() *Config {
	return &Config{
		TemplatesDir:        "templates",
		PreviewsDir:         "previews",
		TempDir:             "temp",
		LibraryDir:          "library",
		MaxConcurrentBuilds: 2,
		QueueCapacity:       20,
		BuildTimeout:        120 * time.Second,
		Port:                3000,
	}
}
