package trial

import (
	"regexp"
	"strconv"
	"strings"
)

// Generated scripts arrive with their suites parked behind skip or fixme so
// nothing runs by accident. A trial flips those back on for one execution.
var (
	describeSkipRe = regexp.MustCompile(`test\.describe\.(?:skip|fixme)\s*\(`)
	runtimeSkipRe  = regexp.MustCompile(`(?m)^([ \t]*)(test\.(?:skip|fixme)\s*\([^\n]*)$`)
)

// Unskip rewrites the script so skipped suites and tests execute, returning
// the rewritten script and how many constructs were re-enabled. Applying it
// to an already-unskipped script is a no-op with count 0.
func Unskip(script string) (string, int) {
	count := 0
	out := describeSkipRe.ReplaceAllStringFunc(script, func(string) string {
		count++
		return "test.describe("
	})
	out = runtimeSkipRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := runtimeSkipRe.FindStringSubmatch(m)
		count++
		return sub[1] + "// " + sub[2]
	})
	return out, count
}

// HasSkips reports whether the script still contains skip or fixme constructs
// that Unskip would rewrite.
func HasSkips(script string) bool {
	return describeSkipRe.MatchString(script) || runtimeSkipRe.MatchString(script)
}

// passedRe matches the reporter summary line, e.g. "3 passed (12.4s)".
var passedRe = regexp.MustCompile(`(\d+)\s+passed`)

// PassedCount extracts the number of passed tests from runner output, or -1
// when no summary line is present.
func PassedCount(output string) int {
	m := passedRe.FindStringSubmatch(output)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

// SummaryLine returns the last non-empty output line for compact reporting.
func SummaryLine(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}
