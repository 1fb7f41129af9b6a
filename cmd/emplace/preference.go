package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// preferences is the small bit of state persisted between runs, outside
// the install core.
type preferences struct {
	LastTargetDirectory string `json:"last_target_directory"`
}

func preferencesPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "emplace", "preferences.json"), nil
}

func loadPreferences() (loaded preferences) {
	path, err := preferencesPath()
	if err != nil {
		return preferences{}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return preferences{}
	}
	_ = json.Unmarshal(raw, &loaded)
	return loaded
}

func savePreferences(current preferences) error {
	path, err := preferencesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
