package config

import "time"

// Config drives one codegraph instance: what to index, how to resolve
// specifiers, which architectural rules to enforce, and how much ambient
// machinery (cache, metrics, history) to run.
type Config struct {
	Version int      `toml:"version"`
	Root    string   `toml:"root"`
	Include []string `toml:"include"`
	Exclude Exclude  `toml:"exclude"`

	MaxFileSize int64             `toml:"max_file_size"`
	Aliases     map[string]string `toml:"aliases"`

	Index       Index       `toml:"index"`
	Watch       Watch       `toml:"watch"`
	Cache       Cache       `toml:"cache"`
	Layers      Layers      `toml:"layers"`
	Entrypoints Entrypoints `toml:"entrypoints"`
	Annotations Annotations `toml:"annotations"`
	History     History     `toml:"history"`
	Observe     Observe     `toml:"observability"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Index struct {
	Workers   int `toml:"workers"`
	BatchSize int `toml:"batch_size"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// AnalysisPerSecond throttles analyzer re-runs under event storms.
	AnalysisPerSecond float64 `toml:"analysis_per_second"`
}

type Cache struct {
	Capacity int           `toml:"capacity"`
	TTL      time.Duration `toml:"ttl"`
}

type Layers struct {
	Rules []LayerRule `toml:"rules"`
}

type LayerRule struct {
	Name         string   `toml:"name"`
	From         string   `toml:"from"`
	CannotImport []string `toml:"cannot_import"`
}

type Entrypoints struct {
	Hints []EntrypointHint `toml:"hints"`
}

// EntrypointHint teaches indexers a framework registration callee, e.g.
// language = "python", pattern = "app.route", kind = "route".
type EntrypointHint struct {
	Language string `toml:"language"`
	Pattern  string `toml:"pattern"`
	Kind     string `toml:"kind"`
}

type Annotations struct {
	Path string `toml:"path"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Observe struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}
