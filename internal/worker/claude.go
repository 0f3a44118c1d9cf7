package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// credentialEnvClaude is the variable the claude CLI reads its key from.
const credentialEnvClaude = "ANTHROPIC_API_KEY"

// ClaudeWorker implements the Worker interface for the Claude Code CLI.
type ClaudeWorker struct {
	command   string
	sessionID string
	workDir   string
	model     string
	credential string
	started   bool
	procMgr   *ProcessManager
}

// claudeResponse represents the JSON structure returned by the claude CLI.
// Example: {"session_id": "uuid", "result": {"content": [{"type": "text", "text": "response"}]}}
type claudeResponse struct {
	SessionID string `json:"session_id"`
	Result    struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

// NewClaudeWorker creates a new claude CLI worker adapter.
// If cfg.SessionID is empty a new UUID is generated; the ProcessManager is
// optional and only used for shutdown tracking.
func NewClaudeWorker(cfg Config, procMgr *ProcessManager) (*ClaudeWorker, error) {
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	command := cfg.Command
	if command == "" {
		command = "claude"
	}

	return &ClaudeWorker{
		command:    command,
		sessionID:  sessionID,
		workDir:    workDir,
		model:      cfg.Model,
		credential: cfg.Credential,
		procMgr:    procMgr,
	}, nil
}

// Invoke runs one claude CLI call and returns the parsed response.
// The first call uses --session-id, subsequent calls use --resume, so the
// worker sees a continuous session even though each call is a fresh process.
func (w *ClaudeWorker) Invoke(ctx context.Context, req Request) (Response, error) {
	args := w.buildArgs(req, w.started)

	cmd := newCommand(ctx, w.command, args...)
	cmd.Dir = w.workDir
	cmd.Env = withCredential(credentialEnvClaude, w.credential)

	stdout, stderr, err := executeCommand(ctx, cmd, w.procMgr)
	if err != nil {
		return Response{}, classifyInvokeError(ctx, err)
	}

	resp, err := parseClaudeResponse(stdout)
	if err != nil {
		return Response{}, fmt.Errorf("%w: parsing claude response: %v (stderr: %s)",
			ErrWorkerUnavailable, err, string(stderr))
	}

	w.started = true
	return resp, nil
}

// Close is a no-op for the claude CLI (subprocess-per-invocation model).
func (w *ClaudeWorker) Close() error {
	return nil
}

// SessionID returns the current session identifier.
func (w *ClaudeWorker) SessionID() string {
	return w.sessionID
}

// buildArgs constructs the command-line arguments for the claude CLI.
// isResume determines whether to use --session-id (false) or --resume (true).
func (w *ClaudeWorker) buildArgs(req Request, isResume bool) []string {
	args := []string{"-p", req.Prompt, "--output-format", "json"}

	if isResume {
		args = append(args, "--resume", w.sessionID)
	} else {
		args = append(args, "--session-id", w.sessionID)
	}

	if w.model != "" {
		args = append(args, "--model", w.model)
	}

	return args
}

// parseClaudeResponse parses the JSON output from the claude CLI.
func parseClaudeResponse(data []byte) (Response, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var output string
	for _, item := range cr.Result.Content {
		if item.Type == "text" {
			output += item.Text
		}
	}

	return Response{
		Output:    output,
		SessionID: cr.SessionID,
	}, nil
}
