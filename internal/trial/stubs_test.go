package trial

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specwright/specwright/internal/framework"
)

func TestEnsurePageStubsCreatesMissingModules(t *testing.T) {
	root := t.TempDir()
	fw := framework.Profile{Root: root, TestsDir: "tests"}
	if err := os.MkdirAll(filepath.Join(root, "tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	script := `import { SupplierPage } from "../pages/supplier_page.ts";
import { LoginPage } from '../pages/login_page';
`
	created, err := EnsurePageStubs(fw, script)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d stubs, want 2: %v", len(created), created)
	}
	b, err := os.ReadFile(filepath.Join(root, "pages", "supplier_page.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "export class SupplierPage") {
		t.Fatalf("stub content:\n%s", b)
	}

	RemoveFiles(created)
	if _, err := os.Stat(created[0]); !os.IsNotExist(err) {
		t.Error("stub survived cleanup")
	}
}

func TestEnsurePageStubsSkipsExisting(t *testing.T) {
	root := t.TempDir()
	fw := framework.Profile{Root: root, TestsDir: "tests"}
	real := filepath.Join(root, "pages", "login_page.ts")
	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(real, []byte("export class LoginPage {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	created, err := EnsurePageStubs(fw, `import { LoginPage } from "../pages/login_page";`)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Fatalf("existing module stubbed: %v", created)
	}
	b, _ := os.ReadFile(real)
	if string(b) != "export class LoginPage {}\n" {
		t.Error("existing module overwritten")
	}
}

func TestEnsurePageStubsSkipsEscapingImports(t *testing.T) {
	root := t.TempDir()
	fw := framework.Profile{Root: root, TestsDir: "tests"}

	created, err := EnsurePageStubs(fw, `import { EvilPage } from "../../../outside/pages/evil";`)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Fatalf("escaping import produced files: %v", created)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(root), "outside")); !os.IsNotExist(statErr) {
		t.Error("file written outside repository root")
	}
}
