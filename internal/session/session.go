// Package session drives a scenario from chat message to pushed test script.
// Each session is a small state machine: evidence is gathered, a preview is
// confirmed, datasheet details are settled, the script is generated and
// trialed, and only a session whose last trial passed may push.
package session

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/specwright/specwright/internal/evidence"
	"github.com/specwright/specwright/internal/trial"
)

// Status is the lifecycle phase of a session.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusPreviewAwaiting   Status = "preview-awaiting"
	StatusAwaitingDatasheet Status = "awaiting-datasheet"
	StatusScriptReady       Status = "script-ready"
	StatusReadyForPush      Status = "ready-for-push"
	StatusComplete          Status = "complete"
)

// DatasheetFields names the data-driven workbook a generated test reads.
type DatasheetFields struct {
	Name        string `msgpack:"name" json:"name"`
	ReferenceID string `msgpack:"reference_id" json:"reference_id"`
	IDName      string `msgpack:"id_name" json:"id_name"`
}

func (d DatasheetFields) Complete() bool {
	return d.Name != "" && d.ReferenceID != "" && d.IDName != ""
}

// TrialRecord is the persisted summary of the most recent trial run.
type TrialRecord struct {
	Passed      bool      `msgpack:"passed" json:"passed"`
	ExitCode    int       `msgpack:"exit_code" json:"exit_code"`
	TimedOut    bool      `msgpack:"timed_out" json:"timed_out"`
	PassedCount int       `msgpack:"passed_count" json:"passed_count"`
	Summary     string    `msgpack:"summary" json:"summary"`
	At          time.Time `msgpack:"at" json:"at"`
}

func recordTrial(res trial.Result) *TrialRecord {
	return &TrialRecord{
		Passed:      res.Passed,
		ExitCode:    res.ExitCode,
		TimedOut:    res.TimedOut,
		PassedCount: res.PassedCount,
		Summary:     trial.SummaryLine(res.Output),
		At:          time.Now().UTC(),
	}
}

// Session is the durable state of one scenario conversation.
type Session struct {
	ID       string `msgpack:"id" json:"id"`
	Scenario string `msgpack:"scenario" json:"scenario"`
	Status   Status `msgpack:"status" json:"status"`

	// Active is false once the session reached a terminal outcome, whether
	// a push or a refusal.
	Active bool `msgpack:"active" json:"active"`

	Preview    string          `msgpack:"preview,omitempty" json:"preview,omitempty"`
	Script     string          `msgpack:"script,omitempty" json:"script,omitempty"`
	ScriptPath string          `msgpack:"script_path,omitempty" json:"script_path,omitempty"`
	Files      []GeneratedFile `msgpack:"files,omitempty" json:"files,omitempty"`
	Datasheet  DatasheetFields `msgpack:"datasheet" json:"datasheet"`
	LastTrial  *TrialRecord    `msgpack:"last_trial,omitempty" json:"last_trial,omitempty"`

	// Evidence is the context snapshot gathered when the scenario started.
	Evidence *evidence.Context `msgpack:"evidence,omitempty" json:"evidence,omitempty"`

	// Feedback keeps every refinement message in the order received.
	Feedback []string `msgpack:"feedback,omitempty" json:"feedback,omitempty"`

	// ExistingFiles are repository assets that already matched the scenario.
	ExistingFiles []string `msgpack:"existing_files,omitempty" json:"existing_files,omitempty"`

	// WrittenFiles are paths persisted into the repository, set only after
	// the write succeeded.
	WrittenFiles []string `msgpack:"written_files,omitempty" json:"written_files,omitempty"`

	// UpdatedConfigs are ledger or config files mutated on this session's
	// behalf.
	UpdatedConfigs []string `msgpack:"updated_configs,omitempty" json:"updated_configs,omitempty"`

	// PendingTestIDs are test-case ids extracted from the generated script,
	// awaiting ledger reconciliation.
	PendingTestIDs []string `msgpack:"pending_test_ids,omitempty" json:"pending_test_ids,omitempty"`

	PushedBranch string    `msgpack:"pushed_branch,omitempty" json:"pushed_branch,omitempty"`
	RepoRef      string    `msgpack:"repo_ref,omitempty" json:"repo_ref,omitempty"`
	Branch       string    `msgpack:"branch,omitempty" json:"branch,omitempty"`
	CreatedAt    time.Time `msgpack:"created_at" json:"created_at"`
	UpdatedAt    time.Time `msgpack:"updated_at" json:"updated_at"`
}

// New creates an idle session with a fresh ULID.
func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        ulid.Make().String(),
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) touch() { s.UpdatedAt = time.Now().UTC() }

// noteUpdatedConfig records a mutated ledger or config path once.
func (s *Session) noteUpdatedConfig(path string) {
	for _, p := range s.UpdatedConfigs {
		if p == path {
			return
		}
	}
	s.UpdatedConfigs = append(s.UpdatedConfigs, path)
}

// CanPush reports whether the push gate is open: a script exists and the
// most recent trial of it passed.
func (s *Session) CanPush() bool {
	return s.Script != "" && s.LastTrial != nil && s.LastTrial.Passed
}
