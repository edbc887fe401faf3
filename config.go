package streaming

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// RetryConfig configures the per-observer fetch retry policy.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	BaseWait    Duration `yaml:"base_wait,omitempty"`
	MaxWait     Duration `yaml:"max_wait,omitempty"`
}

// CheckpointConfig selects and configures the checkpoint backend.
type CheckpointConfig struct {
	// Backend is one of "file", "postgres", "memory", or "none".
	// Defaults to "file".
	Backend string `yaml:"backend,omitempty"`
	// Dir is the data directory for the file backend.
	Dir string `yaml:"dir,omitempty"`
	// DSN is the connection string for the postgres backend.
	DSN string `yaml:"dsn,omitempty"`
	// Strict makes a failed checkpoint save fatal.
	Strict bool `yaml:"strict,omitempty"`
}

// ObserverConfig declares one observer to register at startup.
type ObserverConfig struct {
	// Kind is one of "items" or "status".
	Kind string `yaml:"kind"`
	// Resource is the watched resource identifier.
	Resource string `yaml:"resource"`
	// Script is optional Risor source run as an event handler.
	Script string `yaml:"script,omitempty"`
}

// Config is the declarative form of a pipeline, loadable from YAML.
type Config struct {
	Name       string           `yaml:"name"`
	Period     Duration         `yaml:"period,omitempty"`
	MaxCycles  int              `yaml:"max_cycles,omitempty"`
	StartFresh bool             `yaml:"start_fresh,omitempty"`
	Retry      RetryConfig      `yaml:"retry,omitempty"`
	Checkpoint CheckpointConfig `yaml:"checkpoint,omitempty"`
	Observers  []ObserverConfig `yaml:"observers,omitempty"`
}

// LoadConfig reads and validates a pipeline config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a pipeline config from YAML bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("pipeline name required")
	}
	for i, obs := range cfg.Observers {
		switch obs.Kind {
		case KindItemSet, KindStatus:
		default:
			return nil, fmt.Errorf("observer %d: unknown kind %q", i, obs.Kind)
		}
		if obs.Resource == "" {
			return nil, fmt.Errorf("observer %d: resource required", i)
		}
	}
	return &cfg, nil
}

// SourceSet supplies the snapshot-fetching capabilities the configured
// observers need. The surrounding platform client provides these.
type SourceSet struct {
	Items  ItemFetchFunc
	Status StatusFetchFunc
}

// buildStore constructs the checkpoint backend named by the config.
func (c *Config) buildStore(ctx context.Context) (CheckpointStore, error) {
	switch c.Checkpoint.Backend {
	case "", "file":
		return NewFileCheckpointStore(c.Checkpoint.Dir)
	case "postgres":
		store, err := OpenPostgresCheckpointStore(ctx, c.Checkpoint.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryCheckpointStore(), nil
	case "none":
		return NewNullCheckpointStore(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
}

// BuildPipeline constructs a pipeline from the config, wiring each declared
// observer to the matching fetch capability in sources and attaching any
// configured script handlers.
func (c *Config) BuildPipeline(ctx context.Context, sources SourceSet) (*Pipeline, error) {
	store, err := c.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	pipeline, err := New(Options{
		Name:             c.Name,
		Store:            store,
		Period:           time.Duration(c.Period),
		RetryMaxAttempts: c.Retry.MaxAttempts,
		RetryBaseWait:    time.Duration(c.Retry.BaseWait),
		RetryMaxWait:     time.Duration(c.Retry.MaxWait),
		MaxCycles:        c.MaxCycles,
		StartFresh:       c.StartFresh,
		StrictCheckpoint: c.Checkpoint.Strict,
	})
	if err != nil {
		return nil, err
	}
	for _, obsCfg := range c.Observers {
		var observer Observer
		switch obsCfg.Kind {
		case KindItemSet:
			if sources.Items == nil {
				return nil, fmt.Errorf("observer %s: no item source supplied", obsCfg.Resource)
			}
			observer = NewItemSetObserver(obsCfg.Resource, sources.Items)
		case KindStatus:
			if sources.Status == nil {
				return nil, fmt.Errorf("observer %s: no status source supplied", obsCfg.Resource)
			}
			observer = NewStatusObserver(obsCfg.Resource, sources.Status)
		}
		if obsCfg.Script != "" {
			handler, err := NewScriptHandler(ctx, obsCfg.Script)
			if err != nil {
				return nil, fmt.Errorf("observer %s: %w", obsCfg.Resource, err)
			}
			observer.AddHandler(handler.Handler())
		}
		if err := pipeline.Register(observer); err != nil {
			return nil, err
		}
	}
	return pipeline, nil
}
