package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*HarnessConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.grindstone/config.json
// Project: .grindstone/config.json (relative to cwd)
func LoadDefault() (*HarnessConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".grindstone", "config.json")
	projectPath := filepath.Join(".grindstone", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Set fields override; zero-valued fields
// leave the base untouched.
func mergeConfigFile(base *HarnessConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded HarnessConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeStrings(map[*string]string{
		&base.ManifestPath:  loaded.ManifestPath,
		&base.LedgerPath:    loaded.LedgerPath,
		&base.JournalPath:   loaded.JournalPath,
		&base.ArtifactDir:   loaded.ArtifactDir,
		&base.RepoPath:      loaded.RepoPath,
		&base.TaskSentinel:  loaded.TaskSentinel,
		&base.AllSentinel:   loaded.AllSentinel,
		&base.Worker:        loaded.Worker,
		&base.CredentialEnv: loaded.CredentialEnv,
	})
	mergeInts(map[*int]int{
		&base.MaxIterations:  loaded.MaxIterations,
		&base.StallThreshold: loaded.StallThreshold,
		&base.InvokeTimeout:  loaded.InvokeTimeout,
		&base.LedgerTail:     loaded.LedgerTail,
		&base.JournalTail:    loaded.JournalTail,
		&base.OutputCapBytes: loaded.OutputCapBytes,
	})

	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}

	return nil
}

func mergeStrings(fields map[*string]string) {
	for dst, v := range fields {
		if v != "" {
			*dst = v
		}
	}
}

func mergeInts(fields map[*int]int) {
	for dst, v := range fields {
		if v != 0 {
			*dst = v
		}
	}
}
