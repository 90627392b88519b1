package server

import (
	"time"

	"github.com/specwright/specwright/internal/session"
	"github.com/specwright/specwright/internal/trial"
)

// MessageRequest is the POST /sessions/{id}/message body.
type MessageRequest struct {
	Message string `json:"message"`

	// RepoRef optionally points the session at a repository: a local path
	// or a remote git URL. Branch selects the branch to work on.
	RepoRef string `json:"repo_ref,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// MessageResponse carries the machine's reply and the updated session.
type MessageResponse struct {
	SessionID string           `json:"session_id"`
	Reply     string           `json:"reply"`
	Session   *session.Session `json:"session"`
}

// PersistResponse is returned by POST /sessions/{id}/persist.
type PersistResponse struct {
	SessionID  string `json:"session_id"`
	ScriptPath string `json:"script_path"`
}

// PushResponse is returned by POST /sessions/{id}/push.
type PushResponse struct {
	SessionID string `json:"session_id"`
	Branch    string `json:"branch"`
	Reply     string `json:"reply"`
}

// TrialStatus is returned by GET /trials/{rid} style lookups and embedded in
// stream responses.
type TrialStatus struct {
	RunID         string        `json:"run_id"`
	SessionID     string        `json:"session_id,omitempty"`
	State         string        `json:"state"`
	StartedAt     time.Time     `json:"started_at"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Result        *trial.Result `json:"result,omitempty"`
}

// TrialExistingRequest is the POST /trials/existing body.
type TrialExistingRequest struct {
	Path    string `json:"path"`
	RepoRef string `json:"repo_ref,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// InspectResponse is returned by GET /inspect?keyword=...
type InspectResponse struct {
	Keyword       string          `json:"keyword"`
	FlowAvailable bool            `json:"flow_available"`
	VectorSteps   int             `json:"vector_steps"`
	EnrichedSteps string          `json:"enriched_steps,omitempty"`
	Degraded      []string        `json:"degraded,omitempty"`
	Assets        []evidenceAsset `json:"assets,omitempty"`
}

type evidenceAsset struct {
	Path      string `json:"path"`
	Snippet   string `json:"snippet,omitempty"`
	IsTest    bool   `json:"is_test"`
	Relevance int    `json:"relevance"`
}

// FileResponse is returned by GET /files?path=...
type FileResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int    `json:"size"`
	Lines   int    `json:"lines"`
}

// ErrorResponse is a standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
