package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RefinedFlow is one recorder session refined into ordered steps.
type RefinedFlow struct {
	FlowName  string `json:"flow_name"`
	SessionID string `json:"session_id,omitempty"`
	Steps     []Step `json:"steps"`

	// Path is relative to the store root; UpdatedAt is the artifact mtime.
	Path      string    `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// refinedFlowSchema gates which artifacts are trusted as evidence. Artifacts
// that fail validation are skipped rather than partially loaded.
const refinedFlowSchema = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "flow_name": {"type": "string"},
    "session_id": {"type": "string"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "step": {"type": "integer"},
          "action": {"type": "string"},
          "navigation": {"type": "string"},
          "summary": {"type": "string"},
          "expected": {"type": "string"},
          "locators": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          }
        }
      }
    }
  }
}`

var flowSchema = jsonschema.MustCompileString("refined_flow.json", refinedFlowSchema)

// FlowStore reads refined recorder-flow artifacts (*.refined.json) from a
// directory, newest first.
type FlowStore struct {
	Dir string
}

// candidates returns artifact paths sorted by modification time, newest first.
func (fs FlowStore) candidates() []string {
	if fs.Dir == "" {
		return nil
	}
	matches, err := doublestar.Glob(os.DirFS(fs.Dir), "*.refined.json")
	if err != nil {
		return nil
	}
	type entry struct {
		path  string
		mtime time.Time
	}
	var entries []entry
	for _, m := range matches {
		abs := filepath.Join(fs.Dir, filepath.FromSlash(m))
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		entries = append(entries, entry{abs, info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.After(entries[j].mtime) })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.path
	}
	return out
}

func (fs FlowStore) load(path string) (RefinedFlow, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RefinedFlow{}, false
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return RefinedFlow{}, false
	}
	if err := flowSchema.Validate(raw); err != nil {
		return RefinedFlow{}, false
	}
	var flow RefinedFlow
	if err := json.Unmarshal(b, &flow); err != nil {
		return RefinedFlow{}, false
	}
	if flow.FlowName == "" {
		flow.FlowName = strings.TrimSuffix(filepath.Base(path), ".refined.json")
	}
	if rel, err := filepath.Rel(fs.Dir, path); err == nil {
		flow.Path = filepath.ToSlash(rel)
	} else {
		flow.Path = filepath.Base(path)
	}
	if info, err := os.Stat(path); err == nil {
		flow.UpdatedAt = info.ModTime()
	}
	return flow, true
}

// FindByKeyword returns the newest flow whose name matches the keyword and
// that retains at least one step after locator filtering.
func (fs FlowStore) FindByKeyword(keyword string, allowMissingLocators bool) (RefinedFlow, bool) {
	normalized := NormalizeKeyword(keyword)
	if normalized == "" {
		return RefinedFlow{}, false
	}
	for _, path := range fs.candidates() {
		flow, ok := fs.load(path)
		if !ok {
			continue
		}
		nameNorm := NormalizeKeyword(flow.FlowName)
		stemNorm := NormalizeKeyword(strings.TrimSuffix(filepath.Base(path), ".refined.json"))
		if !strings.Contains(nameNorm, normalized) && !strings.Contains(stemNorm, normalized) {
			continue
		}
		steps := StepsWithLocators(flow.Steps, allowMissingLocators)
		if len(steps) == 0 {
			continue
		}
		flow.Steps = steps
		return flow, true
	}
	return RefinedFlow{}, false
}

// Latest returns the newest flow that has any steps, truncated to limitSteps.
func (fs FlowStore) Latest(limitSteps int) (RefinedFlow, bool) {
	for _, path := range fs.candidates() {
		flow, ok := fs.load(path)
		if !ok {
			continue
		}
		steps := flow.Steps
		if len(steps) == 0 {
			continue
		}
		if limitSteps > 0 && len(steps) > limitSteps {
			steps = steps[:limitSteps]
		}
		flow.Steps = steps
		return flow, true
	}
	return RefinedFlow{}, false
}
