package framework

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Profile describes a Playwright test-framework repository: its root and the
// conventional subdirectories generated artifacts are written to.
type Profile struct {
	Root        string
	TestsDir    string // relative to Root
	PagesDir    string
	LocatorsDir string
	DataDir     string
}

var testDirRe = regexp.MustCompile(`testDir\s*:\s*['"]([^'"]+)['"]`)

// FromRoot builds a Profile for the repository at root. The tests directory is
// taken from playwright.config.{ts,js,mjs} when it declares one; otherwise the
// conventional "tests" is used. The directories are not required to exist.
func FromRoot(root string) Profile {
	p := Profile{
		Root:        root,
		TestsDir:    "tests",
		PagesDir:    "pages",
		LocatorsDir: "locators",
		DataDir:     "data",
	}
	for _, name := range []string{"playwright.config.ts", "playwright.config.js", "playwright.config.mjs"} {
		b, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		if m := testDirRe.FindSubmatch(b); m != nil {
			dir := strings.TrimSpace(string(m[1]))
			dir = strings.TrimPrefix(dir, "./")
			if dir != "" {
				p.TestsDir = filepath.FromSlash(dir)
			}
		}
		break
	}
	return p
}

// TestsPath returns the absolute tests directory.
func (p Profile) TestsPath() string { return filepath.Join(p.Root, p.TestsDir) }

// PagesPath returns the absolute page-objects directory.
func (p Profile) PagesPath() string { return filepath.Join(p.Root, p.PagesDir) }

// DataPath returns the absolute data directory.
func (p Profile) DataPath() string { return filepath.Join(p.Root, p.DataDir) }

// SectionDir maps a payload section name to its absolute directory.
// Unknown sections fall back to the tests directory.
func (p Profile) SectionDir(section string) string {
	switch strings.ToLower(section) {
	case "pages":
		return p.PagesPath()
	case "locators":
		return filepath.Join(p.Root, p.LocatorsDir)
	case "data":
		return p.DataPath()
	default:
		return p.TestsPath()
	}
}
