// Package sentinel classifies worker output by exact stop-token matching.
//
// The sentinel is the only contract surface between worker intent and harness
// action: a stateless worker cannot be trusted to track completion on its own,
// so matching is exact-substring, never fuzzy. A near-miss (different casing,
// punctuation, or a claim for the wrong task) is treated as no sentinel at all.
package sentinel

import (
	"fmt"
	"strings"
)

// Outcome is the parser's classification of a worker response.
type Outcome int

const (
	// Incomplete means no recognizable sentinel was found. The iteration is a
	// failure, not a partial success.
	Incomplete Outcome = iota
	// TaskComplete means the output carries the task-level token for the
	// selected task.
	TaskComplete
	// AllComplete means the output carries the run-level token claiming the
	// backlog is exhausted.
	AllComplete
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case TaskComplete:
		return "task-complete"
	case AllComplete:
		return "all-complete"
	default:
		return "incomplete"
	}
}

// Parser matches configured stop tokens in raw worker output.
type Parser struct {
	taskTemplate string // Rendered with the selected task id, e.g. "[TASK COMPLETE: %s]"
	allToken     string // Fixed run-level token, e.g. "[ALL TASKS COMPLETE]"
}

// New creates a parser. taskTemplate must contain exactly one %s verb for the
// task id; allToken is matched verbatim.
func New(taskTemplate, allToken string) (*Parser, error) {
	if strings.Count(taskTemplate, "%s") != 1 {
		return nil, fmt.Errorf("task sentinel template %q must contain exactly one %%s", taskTemplate)
	}
	if allToken == "" {
		return nil, fmt.Errorf("all-complete sentinel must not be empty")
	}
	return &Parser{taskTemplate: taskTemplate, allToken: allToken}, nil
}

// TaskToken returns the exact token the worker must emit to claim completion
// of the given task. Exposed so prompt construction can state the contract.
func (p *Parser) TaskToken(taskID string) string {
	return fmt.Sprintf(p.taskTemplate, taskID)
}

// AllToken returns the exact run-level completion token.
func (p *Parser) AllToken() string {
	return p.allToken
}

// Parse classifies output against the tokens for the selected task.
// AllComplete wins over TaskComplete when both are present: a worker asserting
// the backlog is done has nothing further for the harness to select.
// A task token carrying any id other than selectedID does not match; the
// harness enforces selected-task identity rather than trusting the worker's
// choice of task.
func (p *Parser) Parse(output, selectedID string) Outcome {
	if strings.Contains(output, p.allToken) {
		return AllComplete
	}
	if selectedID != "" && strings.Contains(output, p.TaskToken(selectedID)) {
		return TaskComplete
	}
	return Incomplete
}

// StripTokens removes lines containing either sentinel token from output,
// yielding the artifact body. Content on sentinel-free lines is preserved
// byte-for-byte.
func (p *Parser) StripTokens(output, selectedID string) string {
	taskToken := ""
	if selectedID != "" {
		taskToken = p.TaskToken(selectedID)
	}

	lines := strings.Split(output, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, p.allToken) {
			continue
		}
		if taskToken != "" && strings.Contains(line, taskToken) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n") + "\n"
}
