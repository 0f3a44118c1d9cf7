package checkpoint

import (
	"fmt"
	"os/exec"
	"strings"
)

// git runs a git command in the repository and returns its trimmed combined
// output. Commands run without a context on purpose: once the commit sequence
// has started it must finish or be rolled back, never be killed halfway by an
// operator interrupt.
func (c *Committer) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.cfg.RepoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w (output: %s)",
			strings.Join(args, " "), err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// TagExists reports whether the given checkpoint tag already exists.
func (c *Committer) TagExists(tag string) (bool, error) {
	out, err := c.git("tag", "--list", tag)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// Head returns the current HEAD commit hash.
func (c *Committer) Head() (string, error) {
	return c.git("rev-parse", "HEAD")
}
