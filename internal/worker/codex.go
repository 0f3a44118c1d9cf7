package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// credentialEnvCodex is the variable the codex CLI reads its key from.
const credentialEnvCodex = "OPENAI_API_KEY"

// CodexWorker implements the Worker interface for the Codex CLI, which emits a
// newline-delimited JSON event stream.
type CodexWorker struct {
	command    string
	threadID   string // Thread ID for resuming conversations
	workDir    string
	model      string
	credential string
	started    bool
	procMgr    *ProcessManager
}

// codexEvent is the base event type used to sniff the event kind.
type codexEvent struct {
	Type string `json:"type"`
}

// codexThreadStarted represents the thread.started event.
type codexThreadStarted struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
}

// codexTurnCompleted represents the turn.completed event.
type codexTurnCompleted struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewCodexWorker creates a new codex CLI worker adapter.
// If cfg.SessionID is provided it is used as the initial thread ID for resume.
func NewCodexWorker(cfg Config, procMgr *ProcessManager) (*CodexWorker, error) {
	command := cfg.Command
	if command == "" {
		command = "codex"
	}

	return &CodexWorker{
		command:    command,
		threadID:   cfg.SessionID,
		workDir:    cfg.WorkDir,
		model:      cfg.Model,
		credential: cfg.Credential,
		started:    cfg.SessionID != "",
		procMgr:    procMgr,
	}, nil
}

// Invoke runs one codex CLI call and returns the final turn content.
func (w *CodexWorker) Invoke(ctx context.Context, req Request) (Response, error) {
	args := w.buildArgs(req)

	cmd := newCommand(ctx, w.command, args...)
	cmd.Dir = w.workDir
	cmd.Env = withCredential(credentialEnvCodex, w.credential)

	stdout, stderr, err := executeCommand(ctx, cmd, w.procMgr)
	if err != nil {
		return Response{}, classifyInvokeError(ctx, err)
	}

	threadID, content, parseErr := parseCodexEvents(stdout)
	if parseErr != nil {
		return Response{}, fmt.Errorf("%w: parsing codex events: %v (stderr: %s)",
			ErrWorkerUnavailable, parseErr, string(stderr))
	}

	if threadID != "" {
		w.threadID = threadID
	}
	w.started = true

	return Response{
		Output:    content,
		SessionID: w.threadID,
	}, nil
}

// Close is a no-op for the codex CLI (subprocess-per-invocation model).
func (w *CodexWorker) Close() error {
	return nil
}

// SessionID returns the current thread identifier.
func (w *CodexWorker) SessionID() string {
	return w.threadID
}

// buildArgs constructs arguments for the codex CLI: a fresh `exec` on first
// use, `exec resume <thread>` afterwards.
func (w *CodexWorker) buildArgs(req Request) []string {
	args := []string{"exec", "--json"}

	if w.started && w.threadID != "" {
		args = append(args, "resume", w.threadID)
	}

	if w.model != "" {
		args = append(args, "--model", w.model)
	}

	return append(args, req.Prompt)
}

// parseCodexEvents walks the NDJSON event stream and extracts the thread ID
// and the content of the last completed turn. Unknown event types are skipped;
// a stream with no turn.completed event is an error.
func parseCodexEvents(data []byte) (threadID string, content string, err error) {
	sawTurn := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var base codexEvent
		if err := json.Unmarshal([]byte(line), &base); err != nil {
			// Tolerate non-JSON noise on stdout (CLI banners, progress lines).
			continue
		}

		switch base.Type {
		case "thread.started":
			var ev codexThreadStarted
			if err := json.Unmarshal([]byte(line), &ev); err == nil {
				threadID = ev.ThreadID
			}
		case "turn.completed":
			var ev codexTurnCompleted
			if err := json.Unmarshal([]byte(line), &ev); err == nil {
				content = ev.Content
				sawTurn = true
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("scanning event stream: %w", err)
	}
	if !sawTurn {
		return "", "", fmt.Errorf("event stream contained no turn.completed event")
	}

	return threadID, content, nil
}
