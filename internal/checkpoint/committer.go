// Package checkpoint persists one completed task as an atomic bundle: the
// artifact, the manifest flag flip, the ledger entry, and a version-control
// checkpoint. Either all four land or none do.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"grindstone/internal/ledger"
	"grindstone/internal/manifest"
)

// Config configures the committer.
type Config struct {
	RepoPath    string // Absolute path to the version-controlled working tree
	ArtifactDir string // Directory under the repo for produced artifacts
	DisableVCS  bool   // Skip the git checkpoint step (used by tests without a repo)
}

// Result describes a successful checkpoint.
type Result struct {
	ArtifactPath string // Repo-relative path of the written artifact
	Checkpoint   string // Checkpoint identifier (the tag name)
	CommitHash   string // Hash of the checkpoint commit
}

// Committer owns all durable writes of the loop.
type Committer struct {
	cfg    Config
	store  *manifest.Store
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New creates a Committer over the given stores.
func New(cfg Config, store *manifest.Store, lgr *ledger.Ledger, logger *zap.Logger) *Committer {
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "artifacts"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{
		cfg:    cfg,
		store:  store,
		ledger: lgr,
		logger: logger.With(zap.String("component", "checkpoint")),
	}
}

// rollbackState captures everything needed to undo a partial commit sequence.
type rollbackState struct {
	manifestBytes   []byte // Manifest file content before the flag flip
	ledgerSize      int64  // Ledger file length before the append
	ledgerEntries   int    // In-memory entry count before the append
	artifactPath    string // Absolute path of the artifact written this sequence
	artifactExisted bool   // True when overwriting an orphan from a crashed run
	committed       bool   // True once the git commit has landed
}

// Commit runs the atomic checkpoint sequence for one completed task:
// (1) write the artifact, (2) flip the manifest flag and save, (3) append the
// ledger entry, (4) git commit + tag. Any step failure rolls the whole
// sequence back and returns the error; the caller marks the iteration errored
// and the task remains selectable on the next iteration.
func (c *Committer) Commit(task *manifest.Record, artifactBody string, completedAt time.Time) (*Result, error) {
	rb, err := c.captureRollbackState()
	if err != nil {
		return nil, fmt.Errorf("capturing rollback state: %w", err)
	}

	relArtifact := c.artifactRelPath(task)
	absArtifact := filepath.Join(c.cfg.RepoPath, relArtifact)
	checkpointTag := "checkpoint/" + task.ID

	// Step 1: write the artifact. An existing file here is an orphan from a
	// crashed run whose flag never flipped; overwriting it is the recovery.
	if _, statErr := os.Stat(absArtifact); statErr == nil {
		rb.artifactExisted = true
		c.logger.Warn("overwriting orphaned artifact from a previous run",
			zap.String("task", task.ID), zap.String("path", relArtifact))
	}
	if err := os.MkdirAll(filepath.Dir(absArtifact), 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(absArtifact, []byte(artifactBody), 0644); err != nil {
		return nil, fmt.Errorf("writing artifact %s: %w", relArtifact, err)
	}
	rb.artifactPath = absArtifact

	// Step 2: flip the completed flag and persist the manifest.
	if err := c.store.MarkCompleted(task.ID); err != nil {
		c.rollback(task.ID, rb)
		return nil, fmt.Errorf("marking task completed: %w", err)
	}
	if err := c.store.Save(); err != nil {
		c.rollback(task.ID, rb)
		return nil, fmt.Errorf("saving manifest: %w", err)
	}

	// Step 3: append the ledger entry referencing artifact and checkpoint.
	entry := ledger.Entry{
		TaskID:      task.ID,
		CompletedAt: completedAt,
		Artifact:    relArtifact,
		Checkpoint:  checkpointTag,
	}
	if err := c.ledger.Append(entry); err != nil {
		c.rollback(task.ID, rb)
		return nil, fmt.Errorf("appending ledger entry: %w", err)
	}

	// Step 4: version-control checkpoint bundling all of the above.
	result := &Result{
		ArtifactPath: relArtifact,
		Checkpoint:   checkpointTag,
	}
	if !c.cfg.DisableVCS {
		hash, err := c.commitAndTag(task, relArtifact, checkpointTag, rb)
		if err != nil {
			c.rollback(task.ID, rb)
			return nil, err
		}
		result.CommitHash = hash
	}

	c.logger.Info("checkpoint committed",
		zap.String("task", task.ID),
		zap.String("artifact", relArtifact),
		zap.String("checkpoint", checkpointTag),
		zap.String("commit", result.CommitHash))

	return result, nil
}

// commitAndTag stages the three mutated paths, commits, and tags the commit
// with the checkpoint identifier recorded in the ledger entry.
func (c *Committer) commitAndTag(task *manifest.Record, relArtifact, tag string, rb *rollbackState) (string, error) {
	paths := []string{relArtifact}
	if rel, err := filepath.Rel(c.cfg.RepoPath, c.store.Path()); err == nil {
		paths = append(paths, rel)
	}
	if rel, err := filepath.Rel(c.cfg.RepoPath, c.ledger.Path()); err == nil {
		paths = append(paths, rel)
	}

	if _, err := c.git(append([]string{"add", "--"}, paths...)...); err != nil {
		return "", fmt.Errorf("staging checkpoint: %w", err)
	}

	msg := fmt.Sprintf("checkpoint: complete %s", task.ID)
	if _, err := c.git("commit", "-m", msg); err != nil {
		return "", fmt.Errorf("committing checkpoint: %w", err)
	}
	rb.committed = true

	if _, err := c.git("tag", "-a", tag, "-m", msg); err != nil {
		return "", fmt.Errorf("tagging checkpoint: %w", err)
	}

	hash, err := c.Head()
	if err != nil {
		return "", fmt.Errorf("resolving checkpoint commit: %w", err)
	}
	return hash, nil
}

// captureRollbackState snapshots the manifest bytes and ledger length before
// any mutation.
func (c *Committer) captureRollbackState() (*rollbackState, error) {
	manifestBytes, err := os.ReadFile(c.store.Path())
	if err != nil {
		return nil, fmt.Errorf("reading manifest for rollback: %w", err)
	}

	ledgerSize, err := c.ledger.Size()
	if err != nil {
		return nil, err
	}

	return &rollbackState{
		manifestBytes: manifestBytes,
		ledgerSize:    ledgerSize,
		ledgerEntries: c.ledger.Len(),
	}, nil
}

// rollback undoes every step that has landed so far. Rollback failures are
// logged, not returned: the caller already has the original error, and the
// integrity check at the next selection will catch anything left inconsistent.
func (c *Committer) rollback(taskID string, rb *rollbackState) {
	c.logger.Warn("rolling back checkpoint sequence", zap.String("task", taskID))

	// A landed commit is undone first so the file restores below are not
	// fighting the committed tree.
	if rb.committed {
		if _, err := c.git("reset", "--hard", "HEAD^"); err != nil {
			c.logger.Error("failed to reset checkpoint commit", zap.String("task", taskID), zap.Error(err))
		}
	}

	if rb.artifactPath != "" && !rb.artifactExisted {
		if err := os.Remove(rb.artifactPath); err != nil && !os.IsNotExist(err) {
			c.logger.Error("failed to remove artifact", zap.String("task", taskID), zap.Error(err))
		}
	}

	if err := os.WriteFile(c.store.Path(), rb.manifestBytes, 0644); err != nil {
		c.logger.Error("failed to restore manifest", zap.String("task", taskID), zap.Error(err))
	}
	if rec, ok := c.store.Get(taskID); ok && rec.Completed {
		if err := c.store.RevertCompleted(taskID); err != nil {
			c.logger.Error("failed to revert completed flag", zap.String("task", taskID), zap.Error(err))
		}
	}

	if err := c.ledger.TruncateTo(rb.ledgerSize, rb.ledgerEntries); err != nil {
		c.logger.Error("failed to truncate ledger", zap.String("task", taskID), zap.Error(err))
	}
}

// artifactRelPath returns the repo-relative artifact location for a task.
// Tasks are grouped by category; uncategorized tasks land at the top level.
func (c *Committer) artifactRelPath(task *manifest.Record) string {
	name := task.ID + ".md"
	if task.Category != "" {
		return filepath.Join(c.cfg.ArtifactDir, task.Category, name)
	}
	return filepath.Join(c.cfg.ArtifactDir, name)
}
