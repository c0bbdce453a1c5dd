package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".clipbridge"
	configFileName = "config.yaml"
)

// Preferences are the installer's own remembered answers. They never hold
// guest state; the bridge settings live in the guest's config.toml.
type Preferences struct {
	LastInstance     string `yaml:"last_instance,omitempty"`
	InstallScope     Scope  `yaml:"install_scope,omitempty"`
	ReleaseBaseURL   string `yaml:"release_base_url,omitempty"`
	ShareXConfigPath string `yaml:"sharex_config_path,omitempty"`
}

// ConfigManager handles reading and writing the installer preferences.
type ConfigManager struct {
	configDir string
	mu        sync.RWMutex
}

// NewConfigManager creates a ConfigManager using the default path (~/.clipbridge/).
func NewConfigManager() (*ConfigManager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return &ConfigManager{
		configDir: filepath.Join(home, configDirName),
	}, nil
}

// NewConfigManagerWithDir creates a ConfigManager using a custom config directory.
// Useful for testing.
func NewConfigManagerWithDir(dir string) *ConfigManager {
	return &ConfigManager{configDir: dir}
}

// ConfigDir returns the configuration directory path.
func (cm *ConfigManager) ConfigDir() string {
	return cm.configDir
}

// ConfigPath returns the full path to the preferences file.
func (cm *ConfigManager) ConfigPath() string {
	return filepath.Join(cm.configDir, configFileName)
}

// Load reads the preferences from disk. A missing file yields empty
// preferences.
func (cm *ConfigManager) Load() (*Preferences, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data, err := os.ReadFile(cm.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Preferences{}, nil
		}
		return nil, fmt.Errorf("reading preferences: %w", err)
	}

	var prefs Preferences
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("parsing preferences %s: %w", cm.ConfigPath(), err)
	}
	if _, err := ParseScope(string(prefs.InstallScope)); err != nil {
		prefs.InstallScope = ""
	}
	return &prefs, nil
}

// Save writes the preferences to disk, creating the directory if needed.
func (cm *ConfigManager) Save(prefs *Preferences) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := os.MkdirAll(cm.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshaling preferences: %w", err)
	}

	// Write atomically: write to temp file then rename
	tmpPath := cm.ConfigPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := os.Rename(tmpPath, cm.ConfigPath()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// Update loads the preferences, applies fn and saves the result.
func (cm *ConfigManager) Update(fn func(*Preferences)) error {
	prefs, err := cm.Load()
	if err != nil {
		return err
	}
	fn(prefs)
	return cm.Save(prefs)
}
