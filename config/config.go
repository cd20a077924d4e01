// Package config loads the proposalmeshd service configuration: a YAML file
// with engine, server, store, archive and provider sections, overlaid with
// environment variables. Every key has a working default, so the service
// starts without a file and credentials can stay out of it entirely
// (TAVILY_API_KEY, KAGGLE_API_TOKEN, OPENAI_API_KEY and friends are read
// from the environment).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/proposalmesh/engine"
	"github.com/hupe1980/proposalmesh/logging"
)

// Analysis backend selectors.
const (
	AnalysisBackendOpenAI    = "openai"
	AnalysisBackendAnthropic = "anthropic"
	AnalysisBackendGemini    = "gemini"
)

// Duration wraps time.Duration so YAML values can be written as "45s" or
// "5m" instead of nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config models the proposalmeshd configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// EngineConfig mirrors engine.Config with YAML-friendly durations.
type EngineConfig struct {
	MaxConcurrentTasks  int      `yaml:"max_concurrent_tasks"`
	DependencyWait      Duration `yaml:"dependency_wait"`
	MaxRunDuration      Duration `yaml:"max_run_duration"`
	CallTimeout         Duration `yaml:"call_timeout"`
	MaxCallAttempts     int      `yaml:"max_call_attempts"`
	RetryBaseDelay      Duration `yaml:"retry_base_delay"`
	ProviderConcurrency int      `yaml:"provider_concurrency"`
	MaxToolCallsPerRun  int      `yaml:"max_tool_calls_per_run"`
	Retention           Duration `yaml:"retention"`
	MaxRetainedRuns     int      `yaml:"max_retained_runs"`
	EventBufferSize     int      `yaml:"event_buffer_size"`
}

// LoggingConfig configures the slog-based logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
	// AddSource includes source positions in log records.
	AddSource bool `yaml:"add_source"`
}

// StoreConfig selects the run store backend.
type StoreConfig struct {
	// PostgresDSN enables the Postgres-backed run store when set. Empty
	// keeps the in-memory store with the engine retention settings.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ArchiveConfig selects the document archive backend. At most one of Dir
// and S3 may be configured; both empty disables archiving.
type ArchiveConfig struct {
	// Dir enables the filesystem archive rooted at the given directory.
	Dir string `yaml:"dir"`
	// S3 enables the object-store archive.
	S3 S3Config `yaml:"s3"`
}

// S3Config configures the object-store archive backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether the S3 archive is configured.
func (c S3Config) Enabled() bool { return c.Endpoint != "" }

// ProvidersConfig configures the gateway providers registered by the
// service binary. API keys left empty fall back to the provider packages'
// environment defaults.
type ProvidersConfig struct {
	WebSearch   WebSearchConfig   `yaml:"web_search"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Kaggle      KaggleConfig      `yaml:"kaggle"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	CodeHost    CodeHostConfig    `yaml:"code_host"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
}

// WebSearchConfig configures the web search provider.
type WebSearchConfig struct {
	Disabled    bool   `yaml:"disabled"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	SearchDepth string `yaml:"search_depth"`
	MaxResults  int    `yaml:"max_results"`
}

// MarketDataConfig configures the market data provider.
type MarketDataConfig struct {
	Disabled   bool   `yaml:"disabled"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Days       int    `yaml:"days"`
	MaxResults int    `yaml:"max_results"`
}

// KaggleConfig configures the Kaggle-style dataset registry provider.
type KaggleConfig struct {
	Disabled   bool   `yaml:"disabled"`
	BaseURL    string `yaml:"base_url"`
	APIToken   string `yaml:"api_token"`
	MaxResults int    `yaml:"max_results"`
}

// HuggingFaceConfig configures the HuggingFace-style dataset hub provider.
type HuggingFaceConfig struct {
	Disabled   bool   `yaml:"disabled"`
	BaseURL    string `yaml:"base_url"`
	MaxResults int    `yaml:"max_results"`
}

// CodeHostConfig configures the repository search provider.
type CodeHostConfig struct {
	Disabled   bool   `yaml:"disabled"`
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	MaxResults int    `yaml:"max_results"`
}

// AnalysisConfig selects and configures the LLM analysis backend.
type AnalysisConfig struct {
	Disabled bool `yaml:"disabled"`
	// Backend is one of openai, anthropic, gemini.
	Backend string `yaml:"backend"`
	// Model overrides the backend's default model when set.
	Model string `yaml:"model"`
}

// Default returns the configuration the service runs with when no file is
// present. Engine values mirror engine.DefaultConfig.
func Default() *Config {
	ec := engine.DefaultConfig
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Engine: EngineConfig{
			MaxConcurrentTasks:  ec.MaxConcurrentTasks,
			DependencyWait:      Duration(ec.DependencyWait),
			MaxRunDuration:      Duration(ec.MaxRunDuration),
			CallTimeout:         Duration(ec.CallTimeout),
			MaxCallAttempts:     ec.MaxCallAttempts,
			RetryBaseDelay:      Duration(ec.RetryBaseDelay),
			ProviderConcurrency: ec.ProviderConcurrency,
			MaxToolCallsPerRun:  ec.MaxToolCallsPerRun,
			Retention:           Duration(ec.Retention),
			MaxRetainedRuns:     ec.MaxRetainedRuns,
			EventBufferSize:     ec.EventBufferSize,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Providers: ProvidersConfig{
			Analysis: AnalysisConfig{Backend: AnalysisBackendOpenAI},
		},
	}
}

// Load reads the YAML file at path, overlays it on the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file and yields the (env-overridden) defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays the recognized environment variables. Environment wins
// over file values so deployments can keep credentials out of YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("PROPOSALMESH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PROPOSALMESH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PROPOSALMESH_PG_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("PROPOSALMESH_ARCHIVE_DIR"); v != "" {
		c.Archive.Dir = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.Providers.WebSearch.APIKey = v
		c.Providers.MarketData.APIKey = v
	}
	if v := os.Getenv("KAGGLE_API_TOKEN"); v != "" {
		c.Providers.Kaggle.APIToken = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Providers.CodeHost.Token = v
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Engine.MaxConcurrentTasks < 0 {
		return fmt.Errorf("engine.max_concurrent_tasks must be >= 0")
	}
	if c.Engine.MaxCallAttempts < 1 {
		return fmt.Errorf("engine.max_call_attempts must be >= 1")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if !c.Providers.Analysis.Disabled {
		switch c.Providers.Analysis.Backend {
		case AnalysisBackendOpenAI, AnalysisBackendAnthropic, AnalysisBackendGemini:
		default:
			return fmt.Errorf("providers.analysis.backend must be openai, anthropic or gemini, got %q", c.Providers.Analysis.Backend)
		}
	}
	if c.Archive.Dir != "" && c.Archive.S3.Enabled() {
		return fmt.Errorf("archive.dir and archive.s3 are mutually exclusive")
	}
	if c.Archive.S3.Enabled() && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required")
	}
	return nil
}

// ToEngine converts the engine section into an engine.Config.
func (c *Config) ToEngine() engine.Config {
	return engine.Config{
		MaxConcurrentTasks:  c.Engine.MaxConcurrentTasks,
		DependencyWait:      c.Engine.DependencyWait.Std(),
		MaxRunDuration:      c.Engine.MaxRunDuration.Std(),
		CallTimeout:         c.Engine.CallTimeout.Std(),
		MaxCallAttempts:     c.Engine.MaxCallAttempts,
		RetryBaseDelay:      c.Engine.RetryBaseDelay.Std(),
		ProviderConcurrency: c.Engine.ProviderConcurrency,
		MaxToolCallsPerRun:  c.Engine.MaxToolCallsPerRun,
		Retention:           c.Engine.Retention.Std(),
		MaxRetainedRuns:     c.Engine.MaxRetainedRuns,
		EventBufferSize:     c.Engine.EventBufferSize,
	}
}

// BuildLogger constructs the service logger from the logging section.
func (c *Config) BuildLogger() logging.Logger {
	return logging.NewSlogLogger(logging.ParseLevel(c.Logging.Level), c.Logging.Format, c.Logging.AddSource)
}
