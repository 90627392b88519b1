package session

import (
	"regexp"
	"strings"
	"unicode"
)

// Intent classifies a chat message in the context of the current status.
type Intent string

const (
	IntentScenario    Intent = "scenario"
	IntentConfirm     Intent = "confirm"
	IntentDecline     Intent = "decline"
	IntentDatasheet   Intent = "datasheet"
	IntentUseDefaults Intent = "use-defaults"
	IntentTrial       Intent = "trial"
	IntentPush        Intent = "push"
	IntentCompare     Intent = "compare"
	IntentLatestFlow  Intent = "latest-flow"
	IntentFeedback    Intent = "feedback"
)

var confirmWords = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "ok": true, "okay": true,
	"sure": true, "confirm": true, "proceed": true, "go": true, "continue": true,
	"lgtm": true, "approved": true,
}

var declineWords = map[string]bool{
	"no": true, "n": true, "nope": true, "cancel": true, "stop": true,
	"abort": true, "discard": true, "reject": true,
}

func normalizeMessage(msg string) string {
	return strings.TrimSpace(strings.ToLower(msg))
}

// IsConfirmation reports whether the message is a plain yes.
func IsConfirmation(msg string) bool {
	return confirmWords[strings.Trim(normalizeMessage(msg), ".!")]
}

// IsDecline reports whether the message is a plain no.
func IsDecline(msg string) bool {
	return declineWords[strings.Trim(normalizeMessage(msg), ".!")]
}

var (
	pushRe    = regexp.MustCompile(`\b(push|commit)\b`)
	trialRe   = regexp.MustCompile(`\b(trial|run it|run the (test|script)|execute)\b`)
	compareRe = regexp.MustCompile(`\b(compare|coverage|diff)\b`)
	latestRe  = regexp.MustCompile(`\blatest\s+(flow|recording)\b`)
	refinedRe = regexp.MustCompile(`(?i)\brefined\b`)
)

// WantsRefinedSteps reports whether the message explicitly asks for refined
// steps, which forces regeneration even when matching assets already exist.
func WantsRefinedSteps(msg string) bool {
	return refinedRe.MatchString(msg)
}

// DetectIntent classifies a message given the current session status. The
// status matters: "yes" is a confirmation only while one is pending, and any
// non-command message on a pending preview or a ready script is treated as
// feedback on it.
func DetectIntent(status Status, msg string) Intent {
	norm := normalizeMessage(msg)
	switch {
	case status == StatusPreviewAwaiting:
		if IsConfirmation(norm) {
			return IntentConfirm
		}
		if IsDecline(norm) {
			return IntentDecline
		}
		if pushRe.MatchString(norm) {
			return IntentPush
		}
		return IntentFeedback
	case status == StatusAwaitingDatasheet:
		if strings.Contains(norm, "default") {
			return IntentUseDefaults
		}
		return IntentDatasheet
	}
	if pushRe.MatchString(norm) {
		return IntentPush
	}
	if trialRe.MatchString(norm) {
		return IntentTrial
	}
	if compareRe.MatchString(norm) {
		return IntentCompare
	}
	if latestRe.MatchString(norm) {
		return IntentLatestFlow
	}
	if status == StatusScriptReady || status == StatusReadyForPush {
		return IntentFeedback
	}
	return IntentScenario
}

var datasheetRe = regexp.MustCompile(`(?i)datasheet\s+(\S+)(?:\s+reference\s+(\S+))?(?:\s+idname\s+(\S+))?`)

// ParseDatasheetMessage extracts datasheet fields from a message of the form
// "datasheet <name> reference <id> idname <column>". Omitted fields come
// back empty for the caller to default.
func ParseDatasheetMessage(msg string) (DatasheetFields, bool) {
	m := datasheetRe.FindStringSubmatch(msg)
	if m == nil {
		return DatasheetFields{}, false
	}
	return DatasheetFields{Name: m[1], ReferenceID: m[2], IDName: m[3]}, true
}

// DefaultDatasheetFields derives conventional datasheet names from the
// scenario keyword: "create supplier" becomes CreateSupplierData.xlsx,
// CreateSupplier001 and CreateSupplierID.
func DefaultDatasheetFields(scenario string) DatasheetFields {
	stem := pascalStem(scenario)
	if stem == "" {
		stem = "Scenario"
	}
	return DatasheetFields{
		Name:        stem + "Data.xlsx",
		ReferenceID: stem + "001",
		IDName:      stem + "ID",
	}
}

func pascalStem(text string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

var testIDRe = regexp.MustCompile(`\b(?:run|test)\(\s*['"]([^'"]+)['"]`)

// ExtractTestIDs pulls quoted test identifiers out of free text, e.g.
// `run("TC-101")`, deduplicated in order of appearance.
func ExtractTestIDs(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range testIDRe.FindAllStringSubmatch(text, -1) {
		id := strings.TrimSpace(m[1])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
