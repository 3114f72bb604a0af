package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UserSettings holds persistable user preferences
type UserSettings struct {
	SignalURL string `json:"signalUrl"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
}

// getConfigPath returns the config file path.
// Uses XDG_CONFIG_HOME if set, otherwise the platform config dir.
func getConfigPath() (string, error) {
	var configDir string

	// Check for XDG override (for power users)
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "examshare")
	} else {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(userConfigDir, "examshare")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// LoadSettings reads settings from the config file.
// Returns zero settings if the file doesn't exist or is invalid.
func LoadSettings() (UserSettings, error) {
	var settings UserSettings

	path, err := getConfigPath()
	if err != nil {
		return settings, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist - use defaults, not an error
			return settings, nil
		}
		return settings, err
	}

	// Parse JSON, keeping defaults for missing fields
	if err := json.Unmarshal(data, &settings); err != nil {
		// Invalid JSON - use defaults
		return UserSettings{}, nil
	}

	return settings, nil
}

// SaveSettings writes settings to the config file
func SaveSettings(settings UserSettings) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Marshal with indentation for readability
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
