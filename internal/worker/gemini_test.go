package worker

import (
	"context"
	"errors"
	"testing"
)

// TestGeminiWorker_ReturnsStdoutVerbatim verifies the plain-text adapter by
// substituting a shell command for the gemini binary.
func TestGeminiWorker_ReturnsStdoutVerbatim(t *testing.T) {
	w, err := NewGeminiWorker(Config{Type: "gemini", Command: "echo"}, nil)
	if err != nil {
		t.Fatalf("NewGeminiWorker failed: %v", err)
	}

	// echo receives "-p <prompt>" and prints it back.
	resp, err := w.Invoke(context.Background(), Request{Prompt: "hello world"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Output != "-p hello world" {
		t.Errorf("Unexpected output: %q", resp.Output)
	}
	if resp.SessionID != w.SessionID() {
		t.Errorf("Response session %q does not match worker session %q", resp.SessionID, w.SessionID())
	}
}

// TestGeminiWorker_EmptyOutputIsUnavailable verifies that a silent worker is
// classified unavailable rather than returning an empty response.
func TestGeminiWorker_EmptyOutputIsUnavailable(t *testing.T) {
	w, err := NewGeminiWorker(Config{Type: "gemini", Command: "true"}, nil)
	if err != nil {
		t.Fatalf("NewGeminiWorker failed: %v", err)
	}

	_, err = w.Invoke(context.Background(), Request{Prompt: "anything"})
	if !errors.Is(err, ErrWorkerUnavailable) {
		t.Errorf("Expected ErrWorkerUnavailable, got %v", err)
	}
}
