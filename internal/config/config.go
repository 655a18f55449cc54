// Package config loads flotilla's runtime configuration from defaults, an
// optional config file, and FLOTILLA_* environment variables, in rising
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// DefinitionsDir is the directory holding stored container and group
	// definitions.
	DefinitionsDir string `mapstructure:"definitions_dir"`

	// ReadinessTimeout bounds the wait for a started container to report
	// running.
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout"`

	// StopTimeout is the grace period given to a container on stop.
	StopTimeout time.Duration `mapstructure:"stop_timeout"`

	// Parallel starts independent dependency subtrees concurrently.
	Parallel bool `mapstructure:"parallel"`

	// Retry tunes how transient runtime failures are retried.
	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig tunes the backoff applied to transient runtime failures.
type RetryConfig struct {
	// MaxAttempts is the additional attempts after the first.
	MaxAttempts uint64 `mapstructure:"max_attempts"`

	// InitialInterval seeds the exponential backoff.
	InitialInterval time.Duration `mapstructure:"initial_interval"`
}

// DefaultDefinitionsDir returns the per-user definitions directory,
// honoring XDG conventions via os.UserConfigDir.
func DefaultDefinitionsDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".flotilla")
	}
	return filepath.Join(base, "flotilla")
}

// Load resolves the configuration. An explicit file path is read strictly;
// with an empty path, a flotilla.yaml in the definitions directory is used
// when present and silently skipped otherwise.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("definitions_dir", DefaultDefinitionsDir())
	v.SetDefault("readiness_timeout", 30*time.Second)
	v.SetDefault("stop_timeout", 10*time.Second)
	v.SetDefault("parallel", false)
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.initial_interval", 500*time.Millisecond)

	v.SetEnvPrefix("FLOTILLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", file, err)
		}
	} else {
		v.SetConfigName("flotilla")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("definitions_dir"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
