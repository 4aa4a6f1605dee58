// Package config loads amanread configuration.
//
// Precedence, lowest to highest: built-in defaults, the user config
// ($XDG_CONFIG_HOME/amanread/config.yaml), the project config
// (.amanread.yaml in the working directory), a .env file, AMANREAD_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete amanread configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Summarizer  SummarizerConfig  `yaml:"summarizer" json:"summarizer"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment" json:"enrichment"`
	Parsing     ParsingConfig     `yaml:"parsing" json:"parsing"`
	Reconcile   ReconcileConfig   `yaml:"reconcile" json:"reconcile"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// StorageConfig locates the data directory.
type StorageConfig struct {
	// DataDir holds amanread.db, vectors/ and logs/. "~" is expanded.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures the search router.
type SearchConfig struct {
	DefaultLimit int    `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int    `yaml:"max_limit" json:"max_limit"`
	DefaultMode  string `yaml:"default_mode" json:"default_mode"` // lexical | semantic
}

// EmbeddingsConfig configures the embedding provider behind the similarity index.
type EmbeddingsConfig struct {
	// Provider is "ollama", "static", or empty for auto-detection
	// (Ollama when reachable, static otherwise).
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	// CacheSize is the LRU size; negative disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// Dimensions of the static embedder; Ollama dimensions are detected.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
}

// SummarizerConfig configures LLM summaries.
type SummarizerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	Model            string        `yaml:"model" json:"model"`
	OllamaHost       string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	MaxContentLength int           `yaml:"max_content_length" json:"max_content_length"`
}

// EnrichmentConfig sizes the background enrichment queue.
type EnrichmentConfig struct {
	Workers   int `yaml:"workers" json:"workers"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// ParsingConfig configures fetching and parsing of sources.
type ParsingConfig struct {
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"` // 0 disables limiting
	Transcripts       bool          `yaml:"transcripts" json:"transcripts"`
}

// ReconcileConfig configures index reconciliation.
type ReconcileConfig struct {
	OnStartup bool `yaml:"on_startup" json:"on_startup"`
	// Interval between sweeps while serving. Zero disables the sweep.
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// DefaultOllamaHost is used when no host is configured.
const DefaultOllamaHost = "http://localhost:11434"

// NewConfig returns a configuration with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir: DefaultDataDir(),
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			DefaultMode:  "lexical",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "",
			Model:      "nomic-embed-text",
			OllamaHost: DefaultOllamaHost,
			Timeout:    30 * time.Second,
			CacheSize:  1000,
			Dimensions: 256,
		},
		Summarizer: SummarizerConfig{
			Enabled:          true,
			Model:            "llama3.2:3b",
			OllamaHost:       DefaultOllamaHost,
			Timeout:          120 * time.Second,
			MaxContentLength: 50000,
		},
		Enrichment: EnrichmentConfig{
			Workers:   2,
			QueueSize: 64,
		},
		Parsing: ParsingConfig{
			FetchTimeout:      30 * time.Second,
			MaxBodyBytes:      20 << 20,
			UserAgent:         "", // empty uses the build user agent
			RequestsPerSecond: 2,
			Transcripts:       true,
		},
		Reconcile: ReconcileConfig{
			OnStartup: true,
			Interval:  0,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DefaultDataDir returns ~/.amanread, or a temp-dir path without a home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanread")
	}
	return filepath.Join(home, ".amanread")
}

// GetUserConfigPath returns the user-level config file path.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanread", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanread", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanread", "config.yaml")
}

// UserConfigExists reports whether a user config file is present.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the effective configuration for a process started in dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	// .env never overrides variables already set in the environment.
	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".amanread.yaml", ".amanread.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path on top of c. Keys absent from the file keep their
// current value, so booleans set to false in a file are honoured.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("AMANREAD_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("AMANREAD_SEARCH_MODE"); v != "" {
		c.Search.DefaultMode = v
	}
	if v := os.Getenv("AMANREAD_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("AMANREAD_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("AMANREAD_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Summarizer.OllamaHost = v
	}
	if v := os.Getenv("AMANREAD_SUMMARIZER_MODEL"); v != "" {
		c.Summarizer.Model = v
	}
	if v := os.Getenv("AMANREAD_SUMMARIZER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AMANREAD_SUMMARIZER_ENABLED: %w", err)
		}
		c.Summarizer.Enabled = b
	}
	if v := os.Getenv("AMANREAD_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AMANREAD_WORKERS: %w", err)
		}
		c.Enrichment.Workers = n
	}
	if v := os.Getenv("AMANREAD_RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AMANREAD_RECONCILE_INTERVAL: %w", err)
		}
		c.Reconcile.Interval = d
	}
	if v := os.Getenv("AMANREAD_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}

	if c.Search.MaxLimit < 1 {
		return fmt.Errorf("search.max_limit must be positive, got %d", c.Search.MaxLimit)
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit must be between 1 and %d, got %d", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	switch c.Search.DefaultMode {
	case "lexical", "semantic":
	default:
		return fmt.Errorf("search.default_mode must be lexical or semantic, got %q", c.Search.DefaultMode)
	}

	switch c.Embeddings.Provider {
	case "", "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be ollama, static or empty, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Timeout <= 0 {
		return fmt.Errorf("embeddings.timeout must be positive")
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must not be negative")
	}

	if c.Summarizer.Timeout <= 0 {
		return fmt.Errorf("summarizer.timeout must be positive")
	}
	if c.Summarizer.MaxContentLength < 1 {
		return fmt.Errorf("summarizer.max_content_length must be positive")
	}

	if c.Enrichment.Workers < 1 {
		return fmt.Errorf("enrichment.workers must be at least 1, got %d", c.Enrichment.Workers)
	}
	if c.Enrichment.QueueSize < 1 {
		return fmt.Errorf("enrichment.queue_size must be at least 1, got %d", c.Enrichment.QueueSize)
	}

	if c.Parsing.FetchTimeout <= 0 {
		return fmt.Errorf("parsing.fetch_timeout must be positive")
	}
	if c.Parsing.RequestsPerSecond < 0 {
		return fmt.Errorf("parsing.requests_per_second must not be negative")
	}

	if c.Reconcile.Interval < 0 {
		return fmt.Errorf("reconcile.interval must not be negative")
	}

	if c.Server.Transport != "stdio" {
		return fmt.Errorf("server.transport must be stdio, got %q", c.Server.Transport)
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("server.log_level must be debug, info, warn or error, got %q", c.Server.LogLevel)
	}
	return nil
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "amanread.db")
}

// VectorDir returns the directory holding the HNSW graph and its sidecars.
func (c *Config) VectorDir() string {
	return filepath.Join(c.Storage.DataDir, "vectors")
}

// LockPath returns the data-directory lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Storage.DataDir, ".amanread.lock")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
