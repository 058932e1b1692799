package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that cannot start the service.
var ErrInvalid = errors.New("invalid configuration")

// Remote judge providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
		Release   bool   `yaml:"release"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // "sqlite" or "postgres"
		DSN    string `yaml:"dsn"`    // SQLite path or PostgreSQL URL
	} `yaml:"database"`

	Log struct {
		Development bool   `yaml:"development"`
		Level       string `yaml:"level"`
	} `yaml:"log"`

	Worker WorkerConfig `yaml:"worker"`
	Local  LocalConfig  `yaml:"local"`
	Remote RemoteConfig `yaml:"remote"`
	RAG    RAGConfig    `yaml:"rag"`

	Metrics struct {
		// SourceBased adds factual_consistency, context_relevance and answer_relevance
		// judged by the remote provider.
		SourceBased bool     `yaml:"source_based"`
		Exclude     []string `yaml:"exclude"`
	} `yaml:"metrics"`
}

// WorkerConfig sizes the background metric pool.
type WorkerConfig struct {
	PoolSize          int           `yaml:"pool_size"`
	MetricConcurrency int           `yaml:"metric_concurrency"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LocalConfig points at the self-hosted LangCheck scoring sidecar.
type LocalConfig struct {
	Enabled           bool          `yaml:"enabled"`
	ScoringServiceURL string        `yaml:"scoring_service_url"`
	Timeout           time.Duration `yaml:"timeout"`
}

// RemoteConfig selects the LLM used as a metric judge and, for openai/azure, for RAG.
type RemoteConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Provider          string        `yaml:"provider"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	AzureEndpoint     string        `yaml:"azure_endpoint"`
	AzureAPIVersion   string        `yaml:"azure_api_version"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

// Suffix is appended to remote metric names, e.g. "response_toxicity_openai".
// Azure deployments are OpenAI models and share the suffix.
func (r RemoteConfig) Suffix() string {
	if r.Provider == ProviderAzure {
		return ProviderOpenAI
	}
	return r.Provider
}

// RAGConfig configures the documentation chatbot.
type RAGConfig struct {
	DocsDir        string `yaml:"docs_dir"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TopK           int    `yaml:"top_k"`
	DemoResponses  string `yaml:"demo_responses"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.ApplyDefaults()

	// Expand environment variables in secrets and endpoints
	config.Database.DSN = os.ExpandEnv(config.Database.DSN)
	config.Remote.APIKey = os.ExpandEnv(config.Remote.APIKey)
	config.Remote.BaseURL = os.ExpandEnv(config.Remote.BaseURL)
	config.Remote.AzureEndpoint = os.ExpandEnv(config.Remote.AzureEndpoint)
	config.Local.ScoringServiceURL = os.ExpandEnv(config.Local.ScoringServiceURL)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "./data/langcheckchat.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Worker.PoolSize == 0 {
		c.Worker.PoolSize = 4
	}
	if c.Worker.MetricConcurrency == 0 {
		c.Worker.MetricConcurrency = 1
	}
	if c.Worker.MaxAttempts == 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.RetryDelay == 0 {
		c.Worker.RetryDelay = 2 * time.Second
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}

	if c.Local.Timeout == 0 {
		c.Local.Timeout = 60 * time.Second
	}

	if c.Remote.Provider == "" {
		c.Remote.Provider = ProviderOpenAI
	}
	if c.Remote.Model == "" {
		switch c.Remote.Provider {
		case ProviderGemini:
			c.Remote.Model = "gemini-2.0-flash"
		default:
			c.Remote.Model = "gpt-4o-mini"
		}
	}
	if c.Remote.AzureAPIVersion == "" {
		c.Remote.AzureAPIVersion = "2024-06-01"
	}
	if c.Remote.RequestsPerMinute == 0 {
		c.Remote.RequestsPerMinute = 60
	}
	if c.Remote.MaxRetries == 0 {
		c.Remote.MaxRetries = 3
	}
	if c.Remote.RetryDelay == 0 {
		c.Remote.RetryDelay = 2 * time.Second
	}

	if c.RAG.DocsDir == "" {
		c.RAG.DocsDir = "./docs"
	}
	if c.RAG.ChatModel == "" {
		c.RAG.ChatModel = c.Remote.Model
	}
	if c.RAG.EmbeddingModel == "" {
		switch c.Remote.Provider {
		case ProviderGemini:
			c.RAG.EmbeddingModel = "text-embedding-004"
		default:
			c.RAG.EmbeddingModel = "text-embedding-3-small"
		}
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 3
	}
}

// Validate rejects configurations that cannot be served.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalid, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalid)
	}

	if c.Local.Enabled && c.Local.ScoringServiceURL == "" {
		return fmt.Errorf("%w: local.scoring_service_url is required when local models are enabled", ErrInvalid)
	}

	// The provider also backs the RAG chatbot, so credentials are needed even
	// when remote metrics are off.
	switch c.Remote.Provider {
	case ProviderOpenAI, ProviderGemini:
	case ProviderAzure:
		if c.Remote.AzureEndpoint == "" {
			return fmt.Errorf("%w: remote.azure_endpoint is required for azure", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown remote provider %q", ErrInvalid, c.Remote.Provider)
	}
	if c.Remote.APIKey == "" || c.Remote.APIKey == "YOUR_API_KEY_HERE" {
		return fmt.Errorf("%w: remote.api_key is required for provider %q", ErrInvalid, c.Remote.Provider)
	}

	if !c.Local.Enabled && !c.Remote.Enabled {
		return fmt.Errorf("%w: at least one of local or remote scoring must be enabled", ErrInvalid)
	}

	if c.Worker.PoolSize < 1 || c.Worker.MetricConcurrency < 1 || c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("%w: worker sizes must be positive", ErrInvalid)
	}

	return nil
}

// Excluded reports whether a metric name was switched off by deployment config.
func (c *Config) Excluded(name string) bool {
	for _, n := range c.Metrics.Exclude {
		if n == name {
			return true
		}
	}
	return false
}
