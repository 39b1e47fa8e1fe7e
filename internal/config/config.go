// Package config loads and validates the application configuration from a
// YAML file with environment-variable expansion and .env support.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	GitHub    GitHubConfig       `yaml:"github"`
	Gemini    GeminiConfig       `yaml:"gemini"`
	Storage   StorageConfig      `yaml:"storage"`
	Events    *EventsConfig      `yaml:"events,omitempty"`
	Logging   LoggingConfig      `yaml:"logging"`
	Defaults  GenerationSettings `yaml:"defaults"`
	Heartbeat time.Duration      `yaml:"heartbeat,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// GitHubConfig holds repository-provider settings.
type GitHubConfig struct {
	// Token is the fallback credential for anonymous callers; per-identity
	// tokens obtained through OAuth take precedence at request time.
	Token  string       `yaml:"token,omitempty"`
	APIURL string       `yaml:"api_url,omitempty"`
	OAuth  *OAuthConfig `yaml:"oauth,omitempty"`
}

// OAuthConfig holds the GitHub OAuth application credentials.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url,omitempty"`
}

// GeminiConfig holds text-generation provider settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	APIURL string `yaml:"api_url,omitempty"`
	// TextModel serves free-text sections; StructuredModel serves the
	// schema-constrained features call.
	TextModel       string `yaml:"text_model,omitempty"`
	StructuredModel string `yaml:"structured_model,omitempty"`
}

// StorageBackend enumerates supported persistence backends.
type StorageBackend string

const (
	BackendSQLite StorageBackend = "sqlite"
	BackendMemory StorageBackend = "memory"
	BackendRedis  StorageBackend = "redis"
)

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`
	Path    string         `yaml:"path,omitempty"` // sqlite file path, ":memory:" allowed
	Redis   RedisConfig    `yaml:"redis,omitempty"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database int    `yaml:"database,omitempty"`
}

// EventsConfig configures the optional NATS lifecycle publisher.
type EventsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a configuration populated with documented defaults.
// Secrets are expected from the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 5000},
		GitHub: GitHubConfig{
			Token:  os.Getenv("GITHUB_TOKEN"),
			APIURL: "https://api.github.com",
		},
		Gemini: GeminiConfig{
			APIKey:          os.Getenv("GEMINI_API_KEY"),
			APIURL:          "https://generativelanguage.googleapis.com",
			TextModel:       "gemini-2.5-flash",
			StructuredModel: "gemini-2.5-pro",
		},
		Storage:   StorageConfig{Backend: BackendSQLite, Path: "readmegen.db"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Defaults:  DefaultSettings(),
		Heartbeat: 5 * time.Minute,
	}
}

// Load reads configuration from the specified file, expanding environment
// variables in the YAML content. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	// Populate the process environment from .env first so ${VAR} expansion
	// and the secret fallbacks below can see it. Existing variables win.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment variables from .env")
	}

	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvFallbacks()
	cfg.normalize()

	return cfg, cfg.Validate()
}

// applyEnvFallbacks fills secrets from well-known environment variables when
// the file leaves them empty.
func (c *Config) applyEnvFallbacks() {
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.GitHub.OAuth == nil {
		id, secret := os.Getenv("GITHUB_CLIENT_ID"), os.Getenv("GITHUB_CLIENT_SECRET")
		if id != "" && secret != "" {
			c.GitHub.OAuth = &OAuthConfig{ClientID: id, ClientSecret: secret}
		}
	}
}

func (c *Config) normalize() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = "https://api.github.com"
	}
	if c.Gemini.APIURL == "" {
		c.Gemini.APIURL = "https://generativelanguage.googleapis.com"
	}
	if c.Gemini.TextModel == "" {
		c.Gemini.TextModel = "gemini-2.5-flash"
	}
	if c.Gemini.StructuredModel == "" {
		c.Gemini.StructuredModel = "gemini-2.5-pro"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "readmegen.db"
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = 5 * time.Minute
	}
	c.Logging.Level = string(NormalizeLogLevel(c.Logging.Level))
	c.Logging.Format = string(NormalizeLogFormat(c.Logging.Format))
	c.Defaults = NormalizeSettings(&c.Defaults)
}

// Validate checks invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Events != nil && c.Events.URL == "" {
		return fmt.Errorf("events.url is required when events are configured")
	}
	return nil
}
