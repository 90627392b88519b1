package framework

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolver_LocalPath(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{}
	root, _, err := r.Resolve(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(dir)
	if root != abs {
		t.Fatalf("root = %q, want %q", root, abs)
	}
}

func TestResolver_EmptyRefUsesDefault(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{DefaultRoot: dir}
	root, _, err := r.Resolve("", "")
	if err != nil {
		t.Fatal(err)
	}
	if root == "" || !strings.HasSuffix(root, filepath.Base(dir)) {
		t.Fatalf("root = %q", root)
	}
}

func TestResolver_EmptyRefNoDefaultFails(t *testing.T) {
	r := Resolver{}
	if _, _, err := r.Resolve("", ""); err == nil {
		t.Fatal("want error for empty reference")
	}
}

func TestResolver_MissingPathFails(t *testing.T) {
	r := Resolver{}
	if _, _, err := r.Resolve(filepath.Join(t.TempDir(), "nope"), ""); err == nil {
		t.Fatal("want error for missing path")
	}
}

func TestCloneKey_StablePerURLAndBranch(t *testing.T) {
	a := cloneKey("https://example.com/org/repo.git", "main")
	b := cloneKey("https://example.com/org/repo.git", "main")
	c := cloneKey("https://example.com/org/repo.git", "develop")
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
	if a == c {
		t.Fatal("different branches must map to different clone dirs")
	}
	if len(a) != 16 {
		t.Fatalf("key length = %d, want 16", len(a))
	}
}

func TestIsRemoteURL(t *testing.T) {
	for _, u := range []string{"https://x/y.git", "http://x/y", "git@host:org/repo.git", "ssh://host/repo"} {
		if !isRemoteURL(u) {
			t.Fatalf("%q should be remote", u)
		}
	}
	for _, p := range []string{"/abs/path", "rel/path", "~/repo", "C:/things"} {
		if isRemoteURL(p) {
			t.Fatalf("%q should be local", p)
		}
	}
}
