package framework

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/specwright/specwright/internal/gitutil"
)

// Resolver turns a framework-repo reference (local path or remote git URL)
// into a local repository root. Remote URLs are cloned once under CloneBase
// in a directory keyed by a hash of the URL, and reused on later calls.
type Resolver struct {
	// CloneBase is where remote repositories are cloned. Required for URLs.
	CloneBase string

	// DefaultRoot is returned when the reference is empty.
	DefaultRoot string
}

// Resolve returns the local root for ref and the branch actually checked out.
// branch may be empty, in which case the repository's current branch is kept.
func (r Resolver) Resolve(ref, branch string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if r.DefaultRoot == "" {
			return "", "", fmt.Errorf("framework repository path is required")
		}
		ref = r.DefaultRoot
	}

	if isRemoteURL(ref) {
		return r.resolveRemote(ref, branch)
	}

	root, err := filepath.Abs(expandHome(ref))
	if err != nil {
		return "", "", fmt.Errorf("resolve path %q: %w", ref, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", "", fmt.Errorf("framework root not found: %s", root)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("framework root is not a directory: %s", root)
	}
	active := branch
	if gitutil.IsRepo(root) {
		if branch != "" {
			if err := gitutil.CheckoutBranch(root, branch); err != nil {
				return "", "", fmt.Errorf("switch branch %q: %w", branch, err)
			}
		} else if cur, err := gitutil.CurrentBranch(root); err == nil {
			active = cur
		}
	}
	return root, active, nil
}

func (r Resolver) resolveRemote(url, branch string) (string, string, error) {
	if r.CloneBase == "" {
		return "", "", fmt.Errorf("no clone base configured for remote repository %q", url)
	}
	dir := filepath.Join(r.CloneBase, cloneKey(url, branch))
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		_ = gitutil.Fetch(dir, "origin")
		if branch != "" {
			if err := gitutil.CheckoutBranch(dir, branch); err != nil {
				return "", "", fmt.Errorf("switch branch %q: %w", branch, err)
			}
		}
		return dir, activeBranch(dir, branch), nil
	}
	if err := os.MkdirAll(r.CloneBase, 0o755); err != nil {
		return "", "", fmt.Errorf("create clone base: %w", err)
	}
	if err := gitutil.Clone(url, dir, branch); err != nil {
		return "", "", fmt.Errorf("git clone failed: %w", err)
	}
	return dir, activeBranch(dir, branch), nil
}

func activeBranch(dir, requested string) string {
	if requested != "" {
		return requested
	}
	if cur, err := gitutil.CurrentBranch(dir); err == nil {
		return cur
	}
	return requested
}

// cloneKey derives a stable directory name for a URL+branch pair.
func cloneKey(url, branch string) string {
	sum := blake3.Sum256([]byte(url + "\n" + branch))
	return hex.EncodeToString(sum[:8])
}

func isRemoteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "git@") ||
		strings.HasPrefix(ref, "ssh://")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
