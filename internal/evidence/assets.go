package evidence

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/specwright/specwright/internal/framework"
)

// ExistingAsset is a framework-repo file matched against a scenario keyword.
type ExistingAsset struct {
	// Path is relative to the framework root, slash-separated.
	Path string
	// Snippet is a short excerpt around the first match (<=500 chars).
	Snippet string
	IsTest  bool
	// Relevance counts matching lines; a filename-only match counts as 1.
	Relevance int
}

const snippetMaxChars = 500

// specPatterns are the file shapes scanned for existing test assets.
var specPatterns = []string{"**/*.spec.ts", "**/*.test.ts"}

// searchDirOrder lists conventional test directories scanned before falling
// back to the whole repository.
var searchDirOrder = []string{"tests", "test", "e2e", "specs", "__tests__"}

// FindExistingAssets scans the framework repository for files whose name or
// content matches the keyword, normalized so spacing and punctuation are
// ignored. Results are sorted by descending relevance and truncated to topK.
func FindExistingAssets(fw framework.Profile, keyword string, topK int) []ExistingAsset {
	normalized := NormalizeKeyword(keyword)
	if normalized == "" {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}

	dirs := []string{}
	if fw.TestsDir != "" {
		dirs = append(dirs, fw.TestsDir)
	}
	for _, d := range searchDirOrder {
		if d != fw.TestsDir {
			dirs = append(dirs, d)
		}
	}
	dirs = append(dirs, ".") // whole-repo fallback

	seen := map[string]bool{}
	var assets []ExistingAsset
	for _, dir := range dirs {
		base := filepath.Join(fw.Root, dir)
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			continue
		}
		for _, pattern := range specPatterns {
			matches, err := doublestar.Glob(os.DirFS(base), pattern)
			if err != nil {
				continue
			}
			for _, m := range matches {
				abs := filepath.Join(base, filepath.FromSlash(m))
				rel, err := filepath.Rel(fw.Root, abs)
				if err != nil {
					continue
				}
				rel = filepath.ToSlash(rel)
				if seen[rel] {
					continue
				}
				seen[rel] = true
				if asset, ok := matchAsset(abs, rel, normalized); ok {
					assets = append(assets, asset)
				}
			}
		}
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].Relevance > assets[j].Relevance
	})
	if len(assets) > topK {
		assets = assets[:topK]
	}
	return assets
}

// matchAsset checks one file against the normalized keyword. Filename match
// takes priority; content is scanned line-by-line, with a normalized
// whole-content match as a fallback for keywords split across punctuation.
func matchAsset(abs, rel, normalized string) (ExistingAsset, bool) {
	name := strings.ToLower(filepath.Base(abs))
	nameNorm := NormalizeKeyword(strings.TrimSuffix(strings.TrimSuffix(name, ".spec.ts"), ".test.ts"))

	b, err := os.ReadFile(abs)
	if err != nil {
		return ExistingAsset{}, false
	}
	content := string(b)
	lines := strings.Split(content, "\n")

	if strings.Contains(nameNorm, normalized) {
		return ExistingAsset{
			Path:      rel,
			Snippet:   clampSnippet(strings.Join(head(lines, 5), "\n")),
			IsTest:    true,
			Relevance: max(1, countMatchingLines(lines, normalized)),
		}, true
	}

	matching := countMatchingLines(lines, normalized)
	if matching == 0 {
		// Normalized fallback: the keyword may straddle line breaks or
		// punctuation the per-line scan cannot see.
		if !strings.Contains(NormalizeKeyword(content), normalized) {
			return ExistingAsset{}, false
		}
		return ExistingAsset{
			Path:      rel,
			Snippet:   clampSnippet(strings.Join(head(lines, 5), "\n")),
			IsTest:    true,
			Relevance: 1,
		}, true
	}

	first := firstMatchingLine(lines, normalized)
	start := max(0, first-2)
	end := min(len(lines), first+4)
	return ExistingAsset{
		Path:      rel,
		Snippet:   clampSnippet(strings.Join(lines[start:end], "\n")),
		IsTest:    true,
		Relevance: matching,
	}, true
}

func countMatchingLines(lines []string, normalized string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(NormalizeKeyword(line), normalized) {
			n++
		}
	}
	return n
}

func firstMatchingLine(lines []string, normalized string) int {
	for i, line := range lines {
		if strings.Contains(NormalizeKeyword(line), normalized) {
			return i
		}
	}
	return 0
}

func head(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}

func clampSnippet(s string) string {
	if len(s) > snippetMaxChars {
		return s[:snippetMaxChars]
	}
	return s
}
