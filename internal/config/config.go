// Package config loads the notesmcp configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// a .env file in the working directory, then process environment. The
// result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "notesmcp.yaml"

// Config is the full notesmcp configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
	Approval ApprovalConfig `yaml:"approval"`
	Admin    AdminConfig    `yaml:"admin"`
	Search   SearchConfig   `yaml:"search"`
	LLM      LLMConfig      `yaml:"llm"`
	Client   ClientConfig   `yaml:"client"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the MCP endpoint.
type ServerConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Endpoint string `yaml:"endpoint" validate:"required,startswith=/"`
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" validate:"required"`
}

// SessionConfig configures login sessions.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" validate:"gt=0"`
}

// ApprovalConfig configures approval tokens.
type ApprovalConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl" validate:"gt=0"`
}

// AdminConfig controls access to the all-users listing.
type AdminConfig struct {
	Users []string `yaml:"users"`
	// OpenListing lets anyone call get_all_users_notes without logging in.
	OpenListing bool `yaml:"open_listing"`
}

// IsAdmin reports whether user may call admin tools.
func (a AdminConfig) IsAdmin(user string) bool {
	for _, u := range a.Users {
		if u == user {
			return true
		}
	}
	return false
}

// SearchConfig configures the web search provider.
type SearchConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	MaxResults int           `yaml:"max_results" validate:"gte=1,lte=20"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LLMConfig configures the chat client's model provider.
type LLMConfig struct {
	BaseURL       string  `yaml:"base_url" validate:"required,url"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model" validate:"required"`
	MaxIterations int     `yaml:"max_iterations" validate:"gte=1"`
	MaxTokens     int     `yaml:"max_tokens" validate:"gte=1"`
	Temperature   float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	SystemPrompt  string  `yaml:"system_prompt"`
}

// ClientConfig configures the chat client's connection to the server.
type ClientConfig struct {
	ServerURL string `yaml:"server_url" validate:"required,url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
	MaxSizeMB   int    `yaml:"max_size_mb" validate:"gte=1"`
	MaxBackups  int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays  int    `yaml:"max_age_days" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Name:     "notes",
			Addr:     "127.0.0.1:8000",
			Endpoint: "/mcp",
		},
		Storage:  StorageConfig{DataDir: filepath.Join(home, ".notesmcp")},
		Session:  SessionConfig{TTL: 12 * time.Hour},
		Approval: ApprovalConfig{TTL: 30 * time.Minute},
		Search: SearchConfig{
			MaxResults: 10,
			Timeout:    30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.groq.com/openai/v1",
			Model:         "llama-3.3-70b-versatile",
			MaxIterations: 10,
			MaxTokens:     2048,
			Temperature:   0.2,
		},
		Client: ClientConfig{ServerURL: "http://127.0.0.1:8000/mcp"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load resolves the configuration. An empty path means DefaultFile if it
// exists; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// A missing .env is normal; the process environment still applies.
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("NOTES_ADDR", &c.Server.Addr)
	str("NOTES_ENDPOINT", &c.Server.Endpoint)
	str("NOTES_DATA_DIR", &c.Storage.DataDir)
	dur("NOTES_SESSION_TTL", &c.Session.TTL)
	str("NOTES_APPROVAL_SECRET", &c.Approval.Secret)
	dur("NOTES_APPROVAL_TTL", &c.Approval.TTL)
	if v, ok := lookup("NOTES_ADMINS"); ok && v != "" {
		c.Admin.Users = splitList(v)
	}
	boolean("NOTES_OPEN_ADMIN_LISTING", &c.Admin.OpenListing)
	str("BRAVE_API_KEY", &c.Search.APIKey)
	str("NOTES_SEARCH_BASE_URL", &c.Search.BaseURL)
	str("GROQ_API_KEY", &c.LLM.APIKey)
	str("GROQ_MODEL_NAME", &c.LLM.Model)
	str("NOTES_LLM_BASE_URL", &c.LLM.BaseURL)
	str("NOTES_SERVER_URL", &c.Client.ServerURL)
	str("NOTES_LOG_LEVEL", &c.Log.Level)
	str("NOTES_LOG_FILE", &c.Log.File)
	boolean("NOTES_LOG_DEV", &c.Log.Development)

	return errors.Join(errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
