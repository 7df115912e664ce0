package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gobwas/glob"
)

// Load reads a TOML config, fills defaults and validates. A missing path
// yields the pure default config so the binary works out of the box.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Root) == "" {
		cfg.Root = "."
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**"}
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{
			"node_modules", "vendor", "dist", "build", "target",
			".git", ".codegraph", "__pycache__",
		}
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 2 << 20 // 2 MiB
	}

	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = runtime.NumCPU()
	}
	if cfg.Index.BatchSize <= 0 {
		cfg.Index.BatchSize = 64
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.AnalysisPerSecond <= 0 {
		cfg.Watch.AnalysisPerSecond = 2
	}

	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = 256
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}

	if strings.TrimSpace(cfg.Annotations.Path) == "" {
		cfg.Annotations.Path = ".codegraph/annotations.toml"
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".codegraph/history.db"
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}

	for _, p := range cfg.Include {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
	}
	for _, p := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid exclude dir pattern %q: %w", p, err)
		}
	}
	for _, p := range cfg.Exclude.Files {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid exclude file pattern %q: %w", p, err)
		}
	}

	for alias, target := range cfg.Aliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(target) == "" {
			return fmt.Errorf("aliases must map non-empty prefix to non-empty target, got %q = %q", alias, target)
		}
	}

	for i, rule := range cfg.Layers.Rules {
		ref := fmt.Sprintf("layers.rules[%d]", i)
		if strings.TrimSpace(rule.Name) == "" {
			return fmt.Errorf("%s.name must not be empty", ref)
		}
		if strings.TrimSpace(rule.From) == "" {
			return fmt.Errorf("%s.from must not be empty", ref)
		}
		if len(rule.CannotImport) == 0 {
			return fmt.Errorf("%s.cannot_import must not be empty", ref)
		}
	}

	for i, hint := range cfg.Entrypoints.Hints {
		ref := fmt.Sprintf("entrypoints.hints[%d]", i)
		if strings.TrimSpace(hint.Pattern) == "" {
			return fmt.Errorf("%s.pattern must not be empty", ref)
		}
		switch hint.Kind {
		case "route", "job", "handler", "main":
		default:
			return fmt.Errorf("%s.kind must be one of: route, job, handler, main; got %q", ref, hint.Kind)
		}
	}

	return nil
}
