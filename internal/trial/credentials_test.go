package trial

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaskPassword(t *testing.T) {
	cases := map[string]string{
		"":         "",
		"a":        "***",
		"ab":       "***",
		"abc":      "*bc",
		"hunter22": "******22",
	}
	for in, want := range cases {
		if got := MaskPassword(in); got != want {
			t.Errorf("MaskPassword(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBannerMasksPassword(t *testing.T) {
	got := Banner(Credentials{Username: "qa-bot", Password: "hunter22", BaseURL: "https://staging.example.com"})
	want := "[trial-creds] username=qa-bot, password=******22, base_url=https://staging.example.com"
	if got != want {
		t.Fatalf("banner = %q", got)
	}
	if strings.Contains(got, "hunter22") {
		t.Fatal("banner leaks the raw password")
	}
}

func TestFileSourceGlobalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.yaml")
	body := "username: qa-bot\npassword: secret99\nbase_url: https://staging.example.com\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := FileSource{Path: path}.Resolve("", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "qa-bot" || c.Password != "secret99" || c.BaseURL != "https://staging.example.com" {
		t.Fatalf("creds = %+v", c)
	}
}

func TestFileSourceRepoAndCaseOverrides(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "creds.yaml")
	if err := os.WriteFile(global, []byte("username: global-user\npassword: global-pw\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(dir, "repo")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	repoBody := strings.Join([]string{
		"username: repo-user",
		"base_url: https://repo.example.com",
		"cases:",
		"  Create Supplier:",
		"    username: supplier-user",
		"  approve_po.spec.ts:",
		"    password: po-pw",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(root, "trial.credentials.yaml"), []byte(repoBody), 0o644); err != nil {
		t.Fatal(err)
	}
	src := FileSource{Path: global}

	// Per-case entry matched on the normalized case id wins over both files.
	c, err := src.Resolve(root, "create-supplier", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "supplier-user" || c.Password != "global-pw" || c.BaseURL != "https://repo.example.com" {
		t.Fatalf("case creds = %+v", c)
	}

	// No case entry: the repository file overrides the global one.
	c, err = src.Resolve(root, "delete supplier", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "repo-user" || c.Password != "global-pw" {
		t.Fatalf("repo creds = %+v", c)
	}

	// Spec file name also selects a case entry.
	c, err = src.Resolve(root, "", "tests/approve_po.spec.ts")
	if err != nil {
		t.Fatal(err)
	}
	if c.Password != "po-pw" {
		t.Fatalf("spec-path creds = %+v", c)
	}
}

func TestFileSourceEnvOverridesFiles(t *testing.T) {
	t.Setenv("SPECWRIGHT_USERNAME", "override-user")
	t.Setenv("SPECWRIGHT_PASSWORD", "")
	t.Setenv("SPECWRIGHT_BASE_URL", "")

	c, err := FileSource{}.Resolve("", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "override-user" {
		t.Fatalf("creds = %+v", c)
	}
	if !(Credentials{}).Empty() {
		t.Fatal("zero credentials should be empty")
	}
}
