package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// credentialEnvGemini is the variable the gemini CLI reads its key from.
const credentialEnvGemini = "GEMINI_API_KEY"

// GeminiWorker implements the Worker interface for the gemini CLI.
// Unlike claude and codex, the gemini CLI writes plain text to stdout, so the
// adapter returns stdout verbatim.
type GeminiWorker struct {
	command    string
	sessionID  string
	workDir    string
	model      string
	credential string
	procMgr    *ProcessManager
}

// NewGeminiWorker creates a new gemini CLI worker adapter.
func NewGeminiWorker(cfg Config, procMgr *ProcessManager) (*GeminiWorker, error) {
	command := cfg.Command
	if command == "" {
		command = "gemini"
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return &GeminiWorker{
		command:    command,
		sessionID:  sessionID,
		workDir:    cfg.WorkDir,
		model:      cfg.Model,
		credential: cfg.Credential,
		procMgr:    procMgr,
	}, nil
}

// Invoke runs one gemini CLI call and returns its stdout.
func (w *GeminiWorker) Invoke(ctx context.Context, req Request) (Response, error) {
	args := []string{"-p", req.Prompt}
	if w.model != "" {
		args = append(args, "--model", w.model)
	}

	cmd := newCommand(ctx, w.command, args...)
	cmd.Dir = w.workDir
	cmd.Env = withCredential(credentialEnvGemini, w.credential)

	stdout, stderr, err := executeCommand(ctx, cmd, w.procMgr)
	if err != nil {
		return Response{}, classifyInvokeError(ctx, err)
	}

	output := strings.TrimSpace(string(stdout))
	if output == "" {
		return Response{}, fmt.Errorf("%w: gemini produced no output (stderr: %s)",
			ErrWorkerUnavailable, string(stderr))
	}

	return Response{
		Output:    output,
		SessionID: w.sessionID,
	}, nil
}

// Close is a no-op for the gemini CLI (subprocess-per-invocation model).
func (w *GeminiWorker) Close() error {
	return nil
}

// SessionID returns the current session identifier.
func (w *GeminiWorker) SessionID() string {
	return w.sessionID
}
