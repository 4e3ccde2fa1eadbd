package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/paritytech/zombienet-sdk/internal/args"
	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// Load reads a TOML network definition, substitutes {{ENV}} tokens and
// validates it into a NetworkSpec.
func Load(path string) (*domain.NetworkSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Errorf(domain.ErrConfigInvalid, "failed to read config %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates TOML bytes.
func Parse(data []byte) (*domain.NetworkSpec, error) {
	// Environment tokens resolve before decoding so they can appear in any
	// string field. ZOMBIE runtime tokens survive untouched.
	substituted := args.SubstituteEnv(string(data))

	var cfg Config
	if err := toml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, domain.Errorf(domain.ErrConfigInvalid, "failed to parse config: %v", err)
	}

	spec, err := Validate(&cfg)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// ApplyEnvOverrides layers the recognized ZOMBIE_* environment variables over
// the loaded settings. CLI flags take precedence over both and are applied by
// the command layer afterwards.
func ApplyEnvOverrides(settings *domain.GlobalSettings) error {
	if v := os.Getenv("ZOMBIE_PROVIDER"); v != "" {
		switch v {
		case domain.ProviderNative, domain.ProviderDocker, domain.ProviderPodman, domain.ProviderK8s:
			settings.Provider = v
		default:
			return domain.Errorf(domain.ErrConfigInvalid, "unknown ZOMBIE_PROVIDER %q", v)
		}
	}
	if v := os.Getenv("ZOMBIE_SPAWN_CONCURRENCY"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 1 {
			return domain.Errorf(domain.ErrConfigInvalid, "invalid ZOMBIE_SPAWN_CONCURRENCY %q", v)
		}
		settings.SpawnConcurrency = n
	}
	if v := os.Getenv("ZOMBIE_NODE_SPAWN_TIMEOUT_SECONDS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 1 {
			return domain.Errorf(domain.ErrConfigInvalid, "invalid ZOMBIE_NODE_SPAWN_TIMEOUT_SECONDS %q", v)
		}
		settings.NodeSpawnTimeout = secondsDuration(n)
	}
	return nil
}
