package sentinel

import (
	"strings"
	"testing"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := New("[TASK COMPLETE: %s]", "[ALL TASKS COMPLETE]")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

// TestNew_RejectsBadTemplates verifies template validation: the task template
// needs exactly one %s and the all-token must be non-empty.
func TestNew_RejectsBadTemplates(t *testing.T) {
	if _, err := New("[DONE]", "[ALL DONE]"); err == nil {
		t.Errorf("Expected error for template without %%s")
	}
	if _, err := New("[%s done by %s]", "[ALL DONE]"); err == nil {
		t.Errorf("Expected error for template with two %%s verbs")
	}
	if _, err := New("[DONE: %s]", ""); err == nil {
		t.Error("Expected error for empty all-complete token")
	}
}

// TestParse_TaskTokenAnywhereInOutput verifies that the task token is detected
// as an exact substring regardless of surrounding text.
func TestParse_TaskTokenAnywhereInOutput(t *testing.T) {
	p := newTestParser(t)

	output := "Here is the essay you asked for.\n\nLorem ipsum.\n\n[TASK COMPLETE: t1] thanks!"
	if got := p.Parse(output, "t1"); got != TaskComplete {
		t.Errorf("Expected TaskComplete, got %v", got)
	}
}

// TestParse_NearMissesAreIncomplete verifies exact matching: casing,
// punctuation, or whitespace variations of the token do not count.
func TestParse_NearMissesAreIncomplete(t *testing.T) {
	p := newTestParser(t)

	nearMisses := []string{
		"[task complete: t1]",
		"[TASK COMPLETE:t1]",
		"[TASK COMPLETE: t1",
		"TASK COMPLETE: t1",
		"[TASK  COMPLETE: t1]",
		"[ALL TASKS COMPLETE!]",
		"all tasks complete",
	}
	for _, output := range nearMisses {
		if got := p.Parse(output, "t1"); got != Incomplete {
			t.Errorf("Parse(%q) = %v, want Incomplete", output, got)
		}
	}
}

// TestParse_WrongTaskIDIsIncomplete verifies that a well-formed task token
// naming a different task than the selected one does not match.
func TestParse_WrongTaskIDIsIncomplete(t *testing.T) {
	p := newTestParser(t)

	output := "Done with everything I picked.\n[TASK COMPLETE: t2]"
	if got := p.Parse(output, "t1"); got != Incomplete {
		t.Errorf("Expected Incomplete for mismatched task id, got %v", got)
	}
}

// TestParse_AllCompleteWinsOverTaskComplete verifies precedence when both
// tokens appear in one response.
func TestParse_AllCompleteWinsOverTaskComplete(t *testing.T) {
	p := newTestParser(t)

	output := "[TASK COMPLETE: t1]\n[ALL TASKS COMPLETE]"
	if got := p.Parse(output, "t1"); got != AllComplete {
		t.Errorf("Expected AllComplete, got %v", got)
	}
}

// TestParse_EmptyOutput verifies that empty output is classified Incomplete.
func TestParse_EmptyOutput(t *testing.T) {
	p := newTestParser(t)

	if got := p.Parse("", "t1"); got != Incomplete {
		t.Errorf("Expected Incomplete for empty output, got %v", got)
	}
}

// TestTaskToken_RendersSelectedID verifies token rendering.
func TestTaskToken_RendersSelectedID(t *testing.T) {
	p := newTestParser(t)

	if got := p.TaskToken("essay-04"); got != "[TASK COMPLETE: essay-04]" {
		t.Errorf("TaskToken = %q", got)
	}
	if got := p.AllToken(); got != "[ALL TASKS COMPLETE]" {
		t.Errorf("AllToken = %q", got)
	}
}

// TestStripTokens_RemovesSentinelLinesOnly verifies that the artifact body
// keeps content lines byte-for-byte and drops only lines carrying a token.
func TestStripTokens_RemovesSentinelLinesOnly(t *testing.T) {
	p := newTestParser(t)

	output := "# Title\n\nBody text stays.\n[TASK COMPLETE: t1]\nTrailing line.\n[ALL TASKS COMPLETE]\n"
	got := p.StripTokens(output, "t1")

	if strings.Contains(got, "TASK COMPLETE") || strings.Contains(got, "ALL TASKS") {
		t.Errorf("Stripped body still contains a sentinel: %q", got)
	}
	want := "# Title\n\nBody text stays.\nTrailing line.\n"
	if got != want {
		t.Errorf("StripTokens = %q, want %q", got, want)
	}
}

// TestOutcome_String verifies the outcome names used in logs.
func TestOutcome_String(t *testing.T) {
	cases := map[Outcome]string{
		Incomplete:   "incomplete",
		TaskComplete: "task-complete",
		AllComplete:  "all-complete",
	}
	for o, want := range cases {
		if o.String() != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, o.String(), want)
		}
	}
}
