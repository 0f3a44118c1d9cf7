package config

// DefaultConfig returns the default configuration with built-in providers.
func DefaultConfig() *HarnessConfig {
	return &HarnessConfig{
		ManifestPath: "manifest.yaml",
		LedgerPath:   "PROGRESS.yaml",
		JournalPath:  ".grindstone/journal.db",
		ArtifactDir:  "artifacts",
		RepoPath:     ".",

		MaxIterations:  50,
		StallThreshold: 5,
		InvokeTimeout:  600,

		TaskSentinel: "[TASK COMPLETE: %s]",
		AllSentinel:  "[ALL TASKS COMPLETE]",

		LedgerTail:     10,
		JournalTail:    5,
		OutputCapBytes: 64 * 1024,

		Worker:        "claude",
		CredentialEnv: "GRINDSTONE_WORKER_TOKEN",
		Providers: map[string]ProviderConfig{
			"claude": {
				Command: "claude",
				Type:    "claude",
			},
			"codex": {
				Command: "codex",
				Type:    "codex",
			},
			"gemini": {
				Command: "gemini",
				Type:    "gemini",
			},
		},
	}
}
