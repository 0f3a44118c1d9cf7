package harness

import (
	"fmt"
	"sort"
	"strings"

	"grindstone/internal/journal"
	"grindstone/internal/ledger"
	"grindstone/internal/manifest"
	"grindstone/internal/sentinel"
)

// promptContext bundles the durable state packaged into one worker request.
// The worker is stateless: everything it needs to know about prior iterations
// has to travel in the prompt.
type promptContext struct {
	Task        *manifest.Record
	Store       *manifest.Store
	LedgerTail  []ledger.Entry
	JournalTail []journal.Record
	Parser      *sentinel.Parser
}

// buildPrompt renders the single textual request for one iteration: the
// selected task, a backlog summary, recent ledger and log entries, and the
// exact sentinel contract the worker must honor.
func buildPrompt(pc promptContext) string {
	var b strings.Builder

	b.WriteString("You are a content-generation worker driven by an iteration harness.\n")
	b.WriteString("Each invocation is independent; the state below is everything you know.\n\n")

	b.WriteString("## Selected task\n")
	fmt.Fprintf(&b, "- id: %s\n", pc.Task.ID)
	if pc.Task.Category != "" {
		fmt.Fprintf(&b, "- category: %s\n", pc.Task.Category)
	}
	if pc.Task.Description != "" {
		fmt.Fprintf(&b, "- description: %s\n", pc.Task.Description)
	}
	if len(pc.Task.Metadata) > 0 {
		keys := make([]string, 0, len(pc.Task.Metadata))
		for k := range pc.Task.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, pc.Task.Metadata[k])
		}
	}

	b.WriteString("\n## Backlog\n")
	fmt.Fprintf(&b, "%d of %d tasks completed.\n", pc.Store.CountCompleted(), pc.Store.Len())
	if remaining := pc.Store.Remaining(); len(remaining) > 0 {
		ids := make([]string, 0, len(remaining))
		for _, rec := range remaining {
			ids = append(ids, rec.ID)
		}
		fmt.Fprintf(&b, "Remaining: %s\n", strings.Join(ids, ", "))
	}

	if len(pc.LedgerTail) > 0 {
		b.WriteString("\n## Recently completed\n")
		for _, e := range pc.LedgerTail {
			fmt.Fprintf(&b, "- %s (%s) -> %s\n", e.TaskID, e.CompletedAt.Format("2006-01-02 15:04"), e.Artifact)
		}
	}

	if len(pc.JournalTail) > 0 {
		b.WriteString("\n## Recent iterations\n")
		for _, rec := range pc.JournalTail {
			task := rec.TaskID
			if task == "" {
				task = "none"
			}
			fmt.Fprintf(&b, "- iteration %d: task %s, outcome %s\n", rec.Iteration, task, rec.Outcome)
		}
	}

	b.WriteString("\n## Instructions\n")
	b.WriteString("Produce the complete content for the selected task only.\n")
	fmt.Fprintf(&b, "When the content is finished, end your response with this exact line:\n%s\n",
		pc.Parser.TaskToken(pc.Task.ID))
	fmt.Fprintf(&b, "Only if you can verify that every task in the backlog is already completed, respond with this exact line instead:\n%s\n",
		pc.Parser.AllToken())
	b.WriteString("Emit the completion line exactly as given. A modified line will not be recognized and the iteration will be discarded.\n")

	return b.String()
}
