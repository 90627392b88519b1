package trial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/specwright/specwright/internal/framework"
)

// pageImportRe captures page-object imports like
//
//	import { SupplierPage } from "../pages/supplier_page.ts";
//
// with either quote style and an optional .ts extension.
var pageImportRe = regexp.MustCompile(`import\s+\{?\s*([A-Za-z0-9_,\s]+?)\s*\}?\s+from\s+['"]([^'"]*pages/[^'"]+?)(?:\.ts)?['"]`)

// EnsurePageStubs writes placeholder page-object modules for imports the
// repository does not have yet, so a trial run fails on assertions rather
// than on module resolution. Imports that resolve outside the repository are
// skipped. It returns the absolute paths of the files it created.
func EnsurePageStubs(fw framework.Profile, script string) ([]string, error) {
	var created []string
	for _, m := range pageImportRe.FindAllStringSubmatch(script, -1) {
		names, importPath := m[1], m[2]

		// Imports are relative to the spec file inside the tests dir.
		rel := filepath.Join(fw.TestsDir, filepath.FromSlash(importPath)+".ts")
		abs, err := framework.ResolveWithin(fw.Root, rel)
		if err != nil {
			if errors.Is(err, framework.ErrPathEscape) {
				continue
			}
			return created, err
		}
		if _, err := os.Stat(abs); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return created, err
		}
		if err := os.WriteFile(abs, []byte(stubModule(names)), 0o644); err != nil {
			return created, err
		}
		created = append(created, abs)
	}
	return created, nil
}

// stubModule renders a minimal page-object class per imported name.
func stubModule(names string) string {
	var b strings.Builder
	b.WriteString("import { Page } from '@playwright/test';\n")
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fmt.Fprintf(&b, `
export class %s {
  readonly page: Page;

  constructor(page: Page) {
    this.page = page;
  }
}
`, name)
	}
	return b.String()
}

// RemoveFiles deletes the given files, ignoring ones already gone. Used to
// clean up synthesized stubs after a trial.
func RemoveFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
