package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specwright/specwright/internal/framework"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindExistingAssetsByFilename(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tests", "create_supplier.spec.ts"),
		"import { test } from '@playwright/test';\ntest('creates a supplier', async () => {});\n")
	writeFile(t, filepath.Join(root, "tests", "login.spec.ts"),
		"test('login works', async () => {});\n")

	fw := framework.Profile{Root: root, TestsDir: "tests"}
	assets := FindExistingAssets(fw, "Create Supplier", 5)
	if len(assets) != 1 {
		t.Fatalf("got %d assets, want 1: %+v", len(assets), assets)
	}
	got := assets[0]
	if got.Path != "tests/create_supplier.spec.ts" {
		t.Errorf("Path = %q", got.Path)
	}
	if !got.IsTest {
		t.Error("spec file not flagged as test")
	}
	if got.Snippet == "" {
		t.Error("filename match should still carry a snippet")
	}
}

func TestFindExistingAssetsByContent(t *testing.T) {
	root := t.TempDir()
	body := strings.Join([]string{
		"import { test } from '@playwright/test';",
		"",
		"test.describe('procurement', () => {",
		"  test('Create Supplier happy path', async ({ page }) => {",
		"    await page.goto('/suppliers');",
		"  });",
		"});",
	}, "\n")
	writeFile(t, filepath.Join(root, "tests", "procurement.spec.ts"), body)

	assets := FindExistingAssets(framework.Profile{Root: root, TestsDir: "tests"}, "create supplier", 5)
	if len(assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(assets))
	}
	if !strings.Contains(assets[0].Snippet, "Create Supplier happy path") {
		t.Errorf("snippet missing matched line: %q", assets[0].Snippet)
	}
	if len(assets[0].Snippet) > 500 {
		t.Errorf("snippet exceeds 500 chars: %d", len(assets[0].Snippet))
	}
}

func TestFindExistingAssetsNoMatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tests", "login.spec.ts"), "test('login', async () => {});\n")

	if assets := FindExistingAssets(framework.Profile{Root: root, TestsDir: "tests"}, "invoice approval", 5); len(assets) != 0 {
		t.Fatalf("expected no matches, got %+v", assets)
	}
}

func TestFindExistingAssetsTruncatesToTopK(t *testing.T) {
	root := t.TempDir()
	names := []string{"checkout_one", "checkout_two", "checkout_three"}
	for _, n := range names {
		writeFile(t, filepath.Join(root, "tests", n+".spec.ts"), "test('checkout', async () => {});\n")
	}

	assets := FindExistingAssets(framework.Profile{Root: root, TestsDir: "tests"}, "checkout", 2)
	if len(assets) != 2 {
		t.Fatalf("got %d assets, want 2", len(assets))
	}
}
