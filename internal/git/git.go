package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Run executes a git command in the given directory and returns trimmed
// combined output.
func Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), err
	}
	return strings.TrimSpace(string(out)), nil
}

// Available reports whether a git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepo returns true if dir is a git repository.
func IsRepo(dir string) bool {
	_, err := Run(dir, "rev-parse", "--git-dir")
	return err == nil
}

// CloneError is returned when a clone fails. Output is git's own message.
type CloneError struct {
	URL    string
	Output string
}

func (e *CloneError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("cloning %s failed", e.URL)
	}
	return fmt.Sprintf("cloning %s: %s", e.URL, e.Output)
}

// ShallowClone clones the tip of url into dst. An empty ref clones the
// remote's default branch.
func ShallowClone(url, dst, ref string) error {
	args := []string{"clone", "--quiet", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, url, dst)
	out, err := Run("", args...)
	if err != nil {
		return &CloneError{URL: url, Output: out}
	}
	return nil
}

// HeadSHA returns the commit checked out in dir.
func HeadSHA(dir string) (string, error) {
	return Run(dir, "rev-parse", "HEAD")
}
