package harness

import (
	"strings"
	"testing"
	"time"

	"grindstone/internal/journal"
	"grindstone/internal/ledger"
	"grindstone/internal/sentinel"
)

// TestBuildPrompt_CarriesFullIterationContext verifies that one prompt packs
// the selected task, backlog summary, recent history, and the exact tokens.
func TestBuildPrompt_CarriesFullIterationContext(t *testing.T) {
	env := setupEnv(t, `tasks:
  - id: t1
    completed: true
  - id: t2
    category: essays
    description: Write the second essay
    metadata:
      tone: formal
  - id: t3
`)

	task, _ := env.store.Get("t2")
	parser, err := sentinel.New("[TASK COMPLETE: %s]", "[ALL TASKS COMPLETE]")
	if err != nil {
		t.Fatalf("sentinel.New failed: %v", err)
	}

	prompt := buildPrompt(promptContext{
		Task:  task,
		Store: env.store,
		LedgerTail: []ledger.Entry{
			{TaskID: "t1", CompletedAt: time.Now(), Artifact: "artifacts/t1.md"},
		},
		JournalTail: []journal.Record{
			{Iteration: 1, TaskID: "t1", Outcome: journal.OutcomeCommitted},
			{Iteration: 2, TaskID: "t2", Outcome: journal.OutcomeRejected},
		},
		Parser: parser,
	})

	for _, want := range []string{
		"id: t2",
		"category: essays",
		"description: Write the second essay",
		"tone: formal",
		"1 of 3 tasks completed",
		"Remaining: t2, t3",
		"artifacts/t1.md",
		"iteration 2: task t2, outcome rejected",
		"[TASK COMPLETE: t2]",
		"[ALL TASKS COMPLETE]",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}
}

// TestBuildPrompt_OmitsEmptySections verifies that first-iteration prompts do
// not render empty history sections.
func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	env := setupEnv(t, "tasks:\n  - id: t1\n")

	task, _ := env.store.Get("t1")
	prompt := buildPrompt(promptContext{
		Task:   task,
		Store:  env.store,
		Parser: env.parser,
	})

	if strings.Contains(prompt, "Recently completed") {
		t.Error("Empty ledger tail should not render a section")
	}
	if strings.Contains(prompt, "Recent iterations") {
		t.Error("Empty journal tail should not render a section")
	}
}
