package framework

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromRoot_Defaults(t *testing.T) {
	dir := t.TempDir()
	p := FromRoot(dir)
	if p.TestsDir != "tests" {
		t.Fatalf("TestsDir = %q, want tests", p.TestsDir)
	}
	if p.SectionDir("pages") != filepath.Join(dir, "pages") {
		t.Fatalf("pages dir = %q", p.SectionDir("pages"))
	}
	// Unknown sections land in tests.
	if p.SectionDir("weird") != filepath.Join(dir, "tests") {
		t.Fatalf("fallback dir = %q", p.SectionDir("weird"))
	}
}

func TestFromRoot_ReadsPlaywrightConfigTestDir(t *testing.T) {
	dir := t.TempDir()
	cfg := "export default { testDir: 'e2e' }\n"
	if err := os.WriteFile(filepath.Join(dir, "playwright.config.ts"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	p := FromRoot(dir)
	if p.TestsDir != "e2e" {
		t.Fatalf("TestsDir = %q, want e2e", p.TestsDir)
	}
	if p.TestsPath() != filepath.Join(dir, "e2e") {
		t.Fatalf("TestsPath = %q", p.TestsPath())
	}
}

func TestFromRoot_DoubleQuotedRelativeTestDir(t *testing.T) {
	dir := t.TempDir()
	cfg := `module.exports = { testDir: "./specs" };` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "playwright.config.js"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := FromRoot(dir).TestsDir; got != "specs" {
		t.Fatalf("TestsDir = %q, want specs", got)
	}
}
