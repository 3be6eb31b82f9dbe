package gitops

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned when the staged tree matches HEAD.
var ErrNothingToCommit = errors.New("nothing to commit")

// Init initializes a new git repository at dir.
func Init(dir string) error {
	return run(dir, "init", "--quiet")
}

// CommitAll stages all files and creates a commit. Returns the short commit hash.
func CommitAll(dir, message, authorName, authorEmail string) (string, error) {
	if err := run(dir, "add", "-A"); err != nil {
		return "", err
	}
	return commit(dir, message, authorName, authorEmail)
}

// CommitPaths stages the given paths (relative to dir) and commits them.
// Returns ErrNothingToCommit when staging changed nothing.
func CommitPaths(dir, message, authorName, authorEmail string, paths ...string) (string, error) {
	if err := run(dir, append([]string{"add", "--"}, paths...)...); err != nil {
		return "", err
	}
	return commit(dir, message, authorName, authorEmail)
}

func commit(dir, message, authorName, authorEmail string) (string, error) {
	// Exit status 0 means nothing is staged.
	diff := exec.Command("git", "diff", "--cached", "--quiet")
	diff.Dir = dir
	if err := diff.Run(); err == nil {
		return "", ErrNothingToCommit
	}

	author := fmt.Sprintf("%s <%s>", authorName, authorEmail)
	cmd := exec.Command("git", "commit", "--quiet", "-m", message, "--author", author)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_COMMITTER_NAME="+authorName,
		"GIT_COMMITTER_EMAIL="+authorEmail,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", out, err)
	}

	rev := exec.Command("git", "rev-parse", "--short", "HEAD")
	rev.Dir = dir
	out, err := rev.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func run(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s: %s: %w", args[0], out, err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
