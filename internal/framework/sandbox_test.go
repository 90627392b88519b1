package framework

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWithin_AllowsRelativeInside(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveWithin(root, "tests/login.spec.ts")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "tests", "login.spec.ts")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveWithin_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	// Drop a sentinel outside the root; the check must fire before any file
	// access, so the sentinel must never be opened.
	outside := filepath.Join(filepath.Dir(root), "passwd")
	_ = os.WriteFile(outside, []byte("secret"), 0o600)

	_, err := ResolveWithin(root, "../../etc/passwd")
	if !errors.Is(err, ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
	_, err = ResolveWithin(root, "../passwd")
	if !errors.Is(err, ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
}

func TestResolveWithin_RootItselfIsInside(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveWithin(root, ".")
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(root)
	if got != abs {
		t.Fatalf("got %q, want %q", got, abs)
	}
}

func TestResolveWithin_RejectsSiblingPrefix(t *testing.T) {
	// /tmp/x-evil must not pass as inside /tmp/x.
	root := t.TempDir()
	_, err := ResolveWithin(root, root+"-evil/file.ts")
	if !errors.Is(err, ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
}
