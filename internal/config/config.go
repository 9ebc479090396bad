package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds runtime configuration. Secrets (e.g. the API key) are read
// from the environment or from the config dir at runtime; never committed.
type Config struct {
	// OpenRouterAPIKey is set from env OPENROUTER_API_KEY or the config file.
	OpenRouterAPIKey string `json:"openrouter_api_key,omitempty"`
	// Model is the OpenRouter model id.
	Model string `json:"model,omitempty"`
	// DefaultChatID owns schedule-spawned jobs.
	DefaultChatID string `json:"default_chat_id,omitempty"`

	// ConfigDir is where config.json lives (e.g. ~/.config/peterbot or .peterbot).
	ConfigDir string `json:"-"` // set at runtime
	// DBPath is the path to peterbot.db.
	DBPath string `json:"-"`
}

// DefaultConfigDir returns the default config directory (project-local
// .peterbot if present, else ~/.config/peterbot).
func DefaultConfigDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".peterbot")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "peterbot")
}

// New builds config from env plus the optional config dir. configDir can be
// empty to use PETERBOT_CONFIG_DIR or the default location.
func New(configDir string) (*Config, error) {
	if configDir == "" {
		if d := os.Getenv("PETERBOT_CONFIG_DIR"); d != "" {
			configDir = d
		} else {
			configDir = DefaultConfigDir()
		}
	}

	c := &Config{
		ConfigDir: configDir,
		DBPath:    filepath.Join(configDir, "peterbot.db"),
	}

	data, err := os.ReadFile(filepath.Join(configDir, "config.json"))
	if err == nil {
		if err := json.Unmarshal(data, c); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Env overrides the file.
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.OpenRouterAPIKey = v
	}
	if v := os.Getenv("PETERBOT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("PETERBOT_CHAT_ID"); v != "" {
		c.DefaultChatID = v
	}
	if c.Model == "" {
		c.Model = "openai/gpt-4o-mini"
	}
	if c.DefaultChatID == "" {
		c.DefaultChatID = "default"
	}
	return c, nil
}

// Save writes config.json to the config dir.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.ConfigDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.ConfigDir, "config.json"), data, 0600)
}
