package trial

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Credentials are the environment login details a trial runs under. They are
// supplied by the operator, never invented.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url"`
}

func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == "" && c.BaseURL == ""
}

// overlay returns c with the non-empty fields of over taking precedence.
func (c Credentials) overlay(over Credentials) Credentials {
	if over.Username != "" {
		c.Username = over.Username
	}
	if over.Password != "" {
		c.Password = over.Password
	}
	if over.BaseURL != "" {
		c.BaseURL = over.BaseURL
	}
	return c
}

// Source resolves the credentials one trial should run under.
type Source interface {
	// Resolve returns the credentials for a trial of specPath in the
	// repository at root, exercising caseID. Any argument may be empty.
	Resolve(root, caseID, specPath string) (Credentials, error)
}

// repoCredsFile sits at the repository root and may carry per-case entries
// alongside repository-wide defaults.
const repoCredsFile = "trial.credentials.yaml"

// FileSource layers credentials from the operator's global YAML file, the
// repository's trial.credentials.yaml and finally the SPECWRIGHT_* process
// environment. A per-case entry in the repository file overrides its
// top-level values for the matching case.
type FileSource struct {
	// Path is the global credentials file. Missing files are tolerated.
	Path string
}

type repoCredentials struct {
	Credentials `yaml:",inline"`
	Cases       map[string]Credentials `yaml:"cases"`
}

func (f FileSource) Resolve(root, caseID, specPath string) (Credentials, error) {
	var creds Credentials
	if f.Path != "" {
		if err := readYAMLFile(f.Path, &creds); err != nil {
			return Credentials{}, err
		}
	}
	if root != "" {
		var rc repoCredentials
		if err := readYAMLFile(filepath.Join(root, repoCredsFile), &rc); err != nil {
			return Credentials{}, err
		}
		creds = creds.overlay(rc.Credentials)
		if c, ok := rc.lookup(caseID, specPath); ok {
			creds = creds.overlay(c)
		}
	}
	return creds.overlay(envCredentials()), nil
}

// lookup finds a per-case entry by the case id or by the spec file name,
// comparing keys case-insensitively with punctuation ignored.
func (r repoCredentials) lookup(caseID, specPath string) (Credentials, bool) {
	want := []string{normalizeCredKey(caseID)}
	if specPath != "" {
		base := filepath.Base(specPath)
		want = append(want,
			normalizeCredKey(strings.TrimSuffix(base, ".spec.ts")),
			normalizeCredKey(base),
		)
	}
	for _, w := range want {
		if w == "" {
			continue
		}
		for key, c := range r.Cases {
			if normalizeCredKey(key) == w {
				return c, true
			}
		}
	}
	return Credentials{}, false
}

func normalizeCredKey(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func readYAMLFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func envCredentials() Credentials {
	return Credentials{
		Username: os.Getenv("SPECWRIGHT_USERNAME"),
		Password: os.Getenv("SPECWRIGHT_PASSWORD"),
		BaseURL:  os.Getenv("SPECWRIGHT_BASE_URL"),
	}
}

// MaskPassword hides a password for display. Very short passwords are fully
// masked; longer ones keep the last two characters visible so an operator can
// sanity-check which credential was used.
func MaskPassword(pw string) string {
	if pw == "" {
		return ""
	}
	runes := []rune(pw)
	if len(runes) <= 2 {
		return "***"
	}
	return strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-2:])
}

// Banner renders the one-line credential notice printed before a trial.
func Banner(c Credentials) string {
	return fmt.Sprintf("[trial-creds] username=%s, password=%s, base_url=%s",
		c.Username, MaskPassword(c.Password), c.BaseURL)
}

// Env returns the process environment additions for a trial run.
func Env(c Credentials) []string {
	var env []string
	if c.Username != "" {
		env = append(env, "TEST_USERNAME="+c.Username)
	}
	if c.Password != "" {
		env = append(env, "TEST_PASSWORD="+c.Password)
	}
	if c.BaseURL != "" {
		env = append(env, "BASE_URL="+c.BaseURL)
	}
	return env
}
