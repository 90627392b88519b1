package evidence

import (
	"regexp"
	"strings"
)

// Step is one captured or vector-derived browser action.
type Step struct {
	Ordinal    int               `json:"step"`
	Action     string            `json:"action,omitempty"`
	Navigation string            `json:"navigation,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Expected   string            `json:"expected,omitempty"`
	Locators   map[string]string `json:"locators,omitempty"`
}

// Context is the aggregated evidence for one scenario.
type Context struct {
	FlowAvailable bool
	VectorSteps   []Step
	EnrichedSteps string
	SessionID     string

	// Degraded names evidence sources that failed during gathering. A
	// degraded source is reported, not fatal; the caller decides whether the
	// remaining evidence is enough.
	Degraded []string
}

// Empty reports whether the context carries no usable evidence.
func (c Context) Empty() bool {
	return !c.FlowAvailable && len(c.VectorSteps) == 0 && strings.TrimSpace(c.EnrichedSteps) == ""
}

// locatorPreference is the order in which locator strategies are trusted.
var locatorPreference = []string{"playwright", "stable", "css", "xpath", "text"}

// genericLocators are placeholder targets recorders emit when they could not
// identify the element. They are never usable locators.
var genericLocators = map[string]bool{"body": true, "document": true, "window": true}

// PrimaryLocator returns the best usable locator for the step and whether one
// exists. Generic placeholders count as missing, but the raw value is still
// returned for display.
func (s Step) PrimaryLocator() (locator string, ok bool, raw string) {
	for _, key := range locatorPreference {
		candidate := strings.TrimSpace(s.Locators[key])
		if candidate == "" {
			continue
		}
		raw = candidate
		if genericLocators[strings.ToLower(candidate)] {
			return "", false, raw
		}
		return candidate, true, raw
	}
	return "", false, ""
}

// Label returns a human-readable one-line description of the step.
func (s Step) Label() string {
	for _, v := range []string{s.Navigation, s.Action, s.Summary} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return "(step)"
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)
var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// NormalizeKeyword lower-cases and strips non-alphanumerics, so that
// "Create Supplier" matches "create_supplier.spec.ts".
func NormalizeKeyword(v string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(v), "")
}

// Tokens splits text into normalized alphanumeric tokens of length >= 3.
func Tokens(text string) []string {
	var out []string
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len(tok) >= 3 {
			out = append(out, tok)
		}
	}
	return out
}

// ContainsKeyword reports whether any descriptive field or locator of the
// step contains the normalized keyword. An empty keyword matches everything.
func (s Step) ContainsKeyword(normalized string) bool {
	if normalized == "" {
		return true
	}
	for _, field := range []string{s.Action, s.Navigation, s.Summary, s.Expected} {
		if field != "" && strings.Contains(NormalizeKeyword(field), normalized) {
			return true
		}
	}
	for _, v := range s.Locators {
		if strings.Contains(NormalizeKeyword(v), normalized) {
			return true
		}
	}
	return false
}

// StepsWithLocators drops steps that have no usable locator. With
// allowMissing set, steps are kept regardless.
func StepsWithLocators(steps []Step, allowMissing bool) []Step {
	if allowMissing {
		return steps
	}
	var out []Step
	for _, s := range steps {
		if _, ok, _ := s.PrimaryLocator(); ok {
			out = append(out, s)
		}
	}
	return out
}

// FilterSteps keeps steps that match the normalized keyword and, unless
// allowMissing is set, carry a usable locator.
func FilterSteps(steps []Step, normalized string, allowMissing bool) []Step {
	var out []Step
	for _, s := range steps {
		_, ok, _ := s.PrimaryLocator()
		if !ok && !allowMissing {
			continue
		}
		if !s.ContainsKeyword(normalized) {
			continue
		}
		out = append(out, s)
	}
	return out
}
