package config

// ProviderConfig defines one worker transport: the CLI command and its type.
// Providers are separate from the run settings so several runs can share one
// provider definition.
type ProviderConfig struct {
	Command string `json:"command"`         // CLI binary name (e.g., "claude", "codex", "gemini")
	Type    string `json:"type"`            // Adapter type matching worker.Config.Type
	Model   string `json:"model,omitempty"` // Optional model override
}

// HarnessConfig is the top-level configuration.
type HarnessConfig struct {
	// Durable state locations. Relative paths resolve against RepoPath.
	ManifestPath string `json:"manifest_path,omitempty"`
	LedgerPath   string `json:"ledger_path,omitempty"`
	JournalPath  string `json:"journal_path,omitempty"`
	ArtifactDir  string `json:"artifact_dir,omitempty"`
	RepoPath     string `json:"repo_path,omitempty"`

	// Loop bounds.
	MaxIterations  int `json:"max_iterations,omitempty"`
	StallThreshold int `json:"stall_threshold,omitempty"`
	InvokeTimeout  int `json:"invoke_timeout_seconds,omitempty"`

	// Sentinel contract.
	TaskSentinel string `json:"task_sentinel,omitempty"` // Template with one %s for the task id
	AllSentinel  string `json:"all_sentinel,omitempty"`

	// Context window packaged into each prompt, and journal output bounding.
	LedgerTail     int `json:"ledger_tail,omitempty"`
	JournalTail    int `json:"journal_tail,omitempty"`
	OutputCapBytes int `json:"output_cap_bytes,omitempty"`

	// Worker selection. CredentialEnv names the environment variable read once
	// at startup; its absence is a fatal startup error.
	Worker        string                    `json:"worker,omitempty"`
	CredentialEnv string                    `json:"credential_env,omitempty"`
	Providers     map[string]ProviderConfig `json:"providers,omitempty"`
}
