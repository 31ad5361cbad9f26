package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marlowhq/notegraph/pkg/community"
	"github.com/marlowhq/notegraph/pkg/embeddings"
	"github.com/marlowhq/notegraph/pkg/layout"
	"github.com/marlowhq/notegraph/pkg/linker"
	"github.com/marlowhq/notegraph/pkg/vectorstore"
)

// Config is the YAML-facing engine configuration. Durations are strings in
// time.ParseDuration syntax ("50ms", "2s").
type Config struct {
	Metric            string `yaml:"metric"`    // "euclidean" (default) or "cosine"
	Precision         string `yaml:"precision"` // "float32" (default) or "float16"
	MinTextLen        int    `yaml:"min_text_len"`
	AutoLink          *bool  `yaml:"auto_link"`
	TickRate          string `yaml:"tick_rate"`
	CommunityInterval string `yaml:"community_interval"`
	EmbedTimeout      string `yaml:"embed_timeout"`
	Seed              int64  `yaml:"seed"`

	Embedder EmbedderConfig `yaml:"embedder"`

	Layout    layout.Config    `yaml:"layout"`
	Linker    linker.Config    `yaml:"linker"`
	Community community.Config `yaml:"community"`
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Type    string `yaml:"type"` // "ollama_api" or "openai_api"
	URL     string `yaml:"url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
	APIKey  string `yaml:"api_key"`
}

// LoadConfig reads and parses the YAML configuration file at path.
// Environment variables in the file are expanded, and unknown fields are
// rejected to prevent silent errors due to typos.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	expandedData := os.ExpandEnv(string(data))

	var config Config
	decoder := yaml.NewDecoder(strings.NewReader(expandedData))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}

	return &config, nil
}

// Options converts the file configuration into runtime Options, constructing
// the configured embedding client. Zero fields keep their defaults.
func (c *Config) Options() (Options, error) {
	opts := DefaultOptions()

	switch strings.ToLower(c.Metric) {
	case "", "euclidean":
		opts.Metric = vectorstore.Euclidean
	case "cosine":
		opts.Metric = vectorstore.Cosine
	default:
		return Options{}, fmt.Errorf("unknown metric %q", c.Metric)
	}

	switch strings.ToLower(c.Precision) {
	case "", "float32":
		opts.Precision = vectorstore.Float32
	case "float16":
		opts.Precision = vectorstore.Float16
	default:
		return Options{}, fmt.Errorf("unknown precision %q", c.Precision)
	}

	if c.MinTextLen > 0 {
		opts.MinTextLen = c.MinTextLen
	}
	if c.AutoLink != nil {
		opts.AutoLink = *c.AutoLink
	}
	if c.Seed != 0 {
		opts.Seed = c.Seed
	}

	var err error
	if opts.TickRate, err = parseDuration(c.TickRate, opts.TickRate); err != nil {
		return Options{}, fmt.Errorf("invalid tick_rate: %w", err)
	}
	if opts.CommunityInterval, err = parseDuration(c.CommunityInterval, opts.CommunityInterval); err != nil {
		return Options{}, fmt.Errorf("invalid community_interval: %w", err)
	}
	if opts.EmbedTimeout, err = parseDuration(c.EmbedTimeout, opts.EmbedTimeout); err != nil {
		return Options{}, fmt.Errorf("invalid embed_timeout: %w", err)
	}

	// Per-field merge: unset YAML fields keep the built-in constants.
	mergeLayout(&opts.Layout, c.Layout)
	mergeLinker(&opts.Linker, c.Linker)
	mergeCommunity(&opts.Community, c.Community)

	if opts.Embedder, err = c.Embedder.build(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (ec EmbedderConfig) build() (embeddings.Embedder, error) {
	timeout, err := parseDuration(ec.Timeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid embedder timeout: %w", err)
	}

	switch ec.Type {
	case "ollama_api":
		return embeddings.NewOllamaEmbedder(ec.URL, ec.Model, timeout), nil
	case "openai_api":
		return embeddings.NewOpenAIEmbedder(ec.URL, ec.Model, ec.APIKey, timeout), nil
	case "":
		return nil, fmt.Errorf("embedder type is required")
	default:
		return nil, fmt.Errorf("unknown embedder type %q", ec.Type)
	}
}

func mergeLayout(dst *layout.Config, src layout.Config) {
	setFloat(&dst.Repulsion, src.Repulsion)
	setFloat(&dst.Softening, src.Softening)
	setFloat(&dst.SpringK, src.SpringK)
	setFloat(&dst.RestLength, src.RestLength)
	setFloat(&dst.Centering, src.Centering)
	setFloat(&dst.Damping, src.Damping)
}

func mergeLinker(dst *linker.Config, src linker.Config) {
	setInt(&dst.TopK, src.TopK)
	setFloat(&dst.AutoIncrement, src.AutoIncrement)
	setFloat(&dst.ManualIncrement, src.ManualIncrement)
	setFloat(&dst.MaxAutoDistance, src.MaxAutoDistance)
	setInt(&dst.MinTitleLen, src.MinTitleLen)
}

func mergeCommunity(dst *community.Config, src community.Config) {
	setFloat(&dst.Gamma, src.Gamma)
	setInt(&dst.MaxPasses, src.MaxPasses)
	setFloat(&dst.Epsilon, src.Epsilon)
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
