package worker

// Request is the single textual request sent to the external worker.
// The prompt carries everything a stateless worker needs to reconstruct run
// state: the selected task, manifest and ledger summaries, and the log tail.
type Request struct {
	Prompt string
}

// Response is the worker's raw textual output.
type Response struct {
	Output    string
	SessionID string
}

// Config defines the configuration for a worker adapter.
type Config struct {
	Type       string // "claude", "codex", or "gemini"
	Command    string // CLI binary name; defaults to Type when empty
	WorkDir    string // Working directory for the subprocess
	SessionID  string // Resume an existing session when non-empty
	Model      string // Optional model override
	Credential string // Injected into the subprocess env under the provider's variable
}
