package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// User holds the persistent user preferences.
type User struct {
	Provider string `json:"provider,omitempty"` // openai, anthropic, deepseek, ...
	APIKey   string `json:"api_key,omitempty"`  // The API key for the selected provider
	Model    string `json:"model,omitempty"`    // Default model name
	BaseURL  string `json:"base_url,omitempty"` // Optional override for API base URL
}

// Manager handles loading and saving the user preferences.
type Manager struct {
	configDir string
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "miniswe")}, nil
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the preferences from disk. A missing file yields an empty
// User and no error.
func (m *Manager) Load() (*User, error) {
	path := m.GetConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &User{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	return &user, nil
}

// Save writes the preferences to disk with restricted permissions (0600).
func (m *Manager) Save(user *User) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}

// ApplyToEnv projects the saved preferences onto the process environment
// so the model factory picks them up. Saved values deliberately override
// stale shell/.env variables.
func (u *User) ApplyToEnv() {
	if u.Provider != "" {
		os.Setenv("LLM_PROVIDER", u.Provider)
	}
	if u.APIKey != "" {
		switch u.Provider {
		case "openai":
			os.Setenv("OPENAI_API_KEY", u.APIKey)
		case "anthropic":
			os.Setenv("ANTHROPIC_API_KEY", u.APIKey)
		case "deepseek":
			os.Setenv("DEEPSEEK_API_KEY", u.APIKey)
		case "groq":
			os.Setenv("GROQ_API_KEY", u.APIKey)
		}
	}
	if u.Model != "" {
		switch u.Provider {
		case "openai":
			os.Setenv("OPENAI_MODEL", u.Model)
		case "anthropic":
			os.Setenv("ANTHROPIC_MODEL", u.Model)
		case "deepseek":
			os.Setenv("DEEPSEEK_MODEL", u.Model)
		case "groq":
			os.Setenv("GROQ_MODEL", u.Model)
		}
	}
	if u.BaseURL != "" && u.Provider == "openai" {
		os.Setenv("OPENAI_BASE_URL", u.BaseURL)
	}
}
