package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// FormatRefinedSteps renders steps as a numbered digest for prompts and chat
// replies. At most limit steps are shown; the remainder is summarized.
func FormatRefinedSteps(steps []Step, limit int) string {
	if len(steps) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = 6
	}
	var b strings.Builder
	for i, s := range steps {
		if i >= limit {
			fmt.Fprintf(&b, "... and %d more steps\n", len(steps)-limit)
			break
		}
		fmt.Fprintf(&b, "%d. %s", i+1, s.Label())
		if loc, ok, _ := s.PrimaryLocator(); ok {
			fmt.Fprintf(&b, " [locator: %s]", loc)
		}
		if s.Expected != "" {
			fmt.Fprintf(&b, " (expect: %s)", s.Expected)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var scriptLocatorRe = regexp.MustCompile(`(?:locator|getByTestId|getByRole|getByText|getByLabel|getByPlaceholder)\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)

// ScriptLocators extracts the locator strings referenced by a Playwright
// script, deduplicated in first-seen order.
func ScriptLocators(script string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range scriptLocatorRe.FindAllStringSubmatch(script, -1) {
		loc := strings.TrimSpace(m[1])
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		out = append(out, loc)
	}
	return out
}

// CompareCoverage reports which refined-flow locators a script reuses and
// which it introduces on its own. It answers "how much of this script is
// grounded in recorded evidence".
func CompareCoverage(script string, steps []Step) string {
	flowLocators := make(map[string]bool)
	for _, s := range steps {
		if loc, ok, _ := s.PrimaryLocator(); ok {
			flowLocators[loc] = true
		}
	}
	scriptLocs := ScriptLocators(script)

	var reused, added []string
	for _, loc := range scriptLocs {
		if flowLocators[loc] {
			reused = append(reused, loc)
		} else {
			added = append(added, loc)
		}
	}
	var unused []string
	reusedSet := make(map[string]bool)
	for _, loc := range reused {
		reusedSet[loc] = true
	}
	for loc := range flowLocators {
		if !reusedSet[loc] {
			unused = append(unused, loc)
		}
	}
	sort.Strings(unused)

	var b strings.Builder
	fmt.Fprintf(&b, "Locator coverage: %d reused from the recorded flow, %d introduced by the script, %d recorded but unused.\n",
		len(reused), len(added), len(unused))
	writeLocatorList(&b, "REUSED", reused)
	writeLocatorList(&b, "ADDED", added)
	writeLocatorList(&b, "UNUSED", unused)
	return strings.TrimRight(b.String(), "\n")
}

func writeLocatorList(b *strings.Builder, label string, locators []string) {
	if len(locators) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, loc := range locators {
		fmt.Fprintf(b, "  - %s\n", loc)
	}
}

// SummarizeLatestFlow renders the newest refined flow for the compare and
// inspect intents.
func SummarizeLatestFlow(flow RefinedFlow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Latest refined flow: %s (%d steps", flow.FlowName, len(flow.Steps))
	if !flow.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, ", updated %s", flow.UpdatedAt.Format("2006-01-02 15:04"))
	}
	b.WriteString(")\n")
	b.WriteString(FormatRefinedSteps(flow.Steps, 6))
	return strings.TrimRight(b.String(), "\n")
}
