package gitutil

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func runGit(dir string, args ...string) (string, string, error) {
	// Disable git's background auto-maintenance so clone-cache operations stay
	// deterministic and don't leave helper processes behind.
	base := []string{
		"-C", dir,
		"-c", "maintenance.auto=0",
		"-c", "gc.auto=0",
	}
	cmd := exec.Command("git", append(base, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	outStr := stdout.String()
	errStr := stderr.String()
	if err != nil {
		return outStr, errStr, &CommandError{Args: args, Stdout: outStr, Stderr: errStr, Err: err}
	}
	return outStr, errStr, nil
}

func IsRepo(dir string) bool {
	out, _, err := runGit(dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// Clone clones url into dir. When branch is non-empty the clone is restricted
// to that single branch.
func Clone(url, dir, branch string) error {
	args := []string{"clone", "--depth", "1"}
	if strings.TrimSpace(branch) != "" {
		args = append(args, "--branch", branch, "--single-branch")
	}
	args = append(args, url, dir)
	cmd := exec.Command("git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &CommandError{Args: args, Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	}
	return nil
}

func Fetch(dir, remote string) error {
	_, _, err := runGit(dir, "fetch", remote)
	return err
}

func CurrentBranch(dir string) (string, error) {
	out, _, err := runGit(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func CheckoutBranch(dir, branch string) error {
	_, _, err := runGit(dir, "switch", branch)
	return err
}

// CheckoutNewBranch creates branch if it does not exist, then switches to it.
func CheckoutNewBranch(dir, branch string) error {
	if _, _, err := runGit(dir, "switch", branch); err == nil {
		return nil
	}
	_, _, err := runGit(dir, "switch", "-c", branch)
	return err
}

func StatusPorcelain(dir string) (string, error) {
	out, _, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return out, nil
}

func IsClean(dir string) (bool, error) {
	out, err := StatusPorcelain(dir)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

func AddAll(dir string) error {
	_, _, err := runGit(dir, "add", "-A")
	return err
}

// CommitAll stages everything and commits. If the repository has no committer
// identity configured, it retries once with an explicit fallback identity
// without mutating repo config.
func CommitAll(dir, message string) error {
	if err := AddAll(dir); err != nil {
		return err
	}
	_, _, err := runGit(dir, "commit", "-m", message)
	if err != nil {
		if strings.Contains(err.Error(), "Author identity unknown") ||
			strings.Contains(err.Error(), "Please tell me who you are") ||
			strings.Contains(err.Error(), "unable to auto-detect email address") {
			_, _, err = runGit(
				dir,
				"-c", "user.name=specwright",
				"-c", "user.email=specwright@local",
				"commit", "-m", message,
			)
		}
		if strings.Contains(errString(err), "nothing to commit") {
			return nil
		}
	}
	return err
}

// PushBranch pushes a branch to the given remote. Failures are returned but
// callers treat a failed push as a recoverable outcome.
func PushBranch(dir, remote, branch string) error {
	_, _, err := runGit(dir, "push", "-u", remote, branch)
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
