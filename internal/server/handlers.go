package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/specwright/specwright/internal/framework"
	"github.com/specwright/specwright/internal/session"
	"github.com/specwright/specwright/internal/trial"
)

// validSessionID matches ULIDs and other safe identifiers, plus "new".
var validSessionID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"trials": len(s.registry.List()),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.machine.Repo.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.machine.Repo.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleMessage advances a session with one chat message. The id "new"
// starts a fresh session.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validSessionID.MatchString(id) {
		writeError(w, http.StatusBadRequest, "session id must be alphanumeric with dashes/underscores, 1-128 chars")
		return
	}
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sess := s.machine.Load(sessionIDOrEmpty(id))
	if req.RepoRef != "" {
		sess.RepoRef = req.RepoRef
	}
	if req.Branch != "" {
		sess.Branch = req.Branch
	}

	reply, err := s.machine.HandleMessage(r.Context(), sess, req.Message)
	if err != nil {
		writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{SessionID: sess.ID, Reply: reply, Session: sess})
}

func sessionIDOrEmpty(id string) string {
	if id == "new" {
		return ""
	}
	return id
}

func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	rel, err := s.machine.Persist(sess)
	if err != nil {
		writeMachineError(w, err)
		return
	}
	if err := s.machine.Repo.Put(sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PersistResponse{SessionID: sess.ID, ScriptPath: rel})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	reply, err := s.machine.Push(sess)
	if err != nil {
		writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PushResponse{SessionID: sess.ID, Branch: sess.PushedBranch, Reply: reply})
}

// handleTrial runs the session's script once, blocking until the trial ends
// or times out.
func (s *Server) handleTrial(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	reply, err := s.machine.RunTrial(r.Context(), sess)
	if err != nil {
		writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{SessionID: sess.ID, Reply: reply, Session: sess})
}

// handleTrialStream starts a trial in the background and returns a run ID
// whose events can be followed at GET /trials/{rid}/events.
func (s *Server) handleTrialStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	events, err := s.machine.StreamTrial(ctx, sess)
	if err != nil {
		cancel()
		writeMachineError(w, err)
		return
	}

	runID := ulid.Make().String()
	broadcaster := NewBroadcaster()
	ts := &TrialState{
		RunID:       runID,
		SessionID:   sess.ID,
		Broadcaster: broadcaster,
		Cancel:      cancel,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.registry.Register(runID, ts); err != nil {
		cancel()
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	go func() {
		defer broadcaster.Close()
		defer cancel()
		for ev := range events {
			broadcaster.Send(trialEventMap(ev))
			if ev.Result != nil && (ev.Type == trial.EventDone || ev.Type == trial.EventError) {
				ts.SetResult(ev.Result, nil)
				if err := s.machine.RecordTrial(sess, *ev.Result); err != nil {
					s.logger.Printf("record trial %s: %v", runID, err)
				}
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, ts.Status())
}

func trialEventMap(ev trial.Event) map[string]any {
	m := map[string]any{"type": string(ev.Type)}
	if ev.Message != "" {
		m["message"] = ev.Message
	}
	if ev.Result != nil {
		m["result"] = ev.Result
	}
	return m
}

func (s *Server) handleTrialEvents(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.registry.Get(r.PathValue("rid"))
	if !ok {
		writeError(w, http.StatusNotFound, "trial not found")
		return
	}
	WriteSSE(w, r, ts.Broadcaster)
}

func (s *Server) handleTrialExisting(w http.ResponseWriter, r *http.Request) {
	var req TrialExistingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	res, err := s.machine.TrialExisting(r.Context(), req.RepoRef, req.Branch, req.Path)
	if err != nil {
		writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword query parameter is required")
		return
	}
	ev, assets := s.machine.Inspect(r.Context(), r.URL.Query().Get("repo"), r.URL.Query().Get("branch"), keyword)

	resp := InspectResponse{
		Keyword:       keyword,
		FlowAvailable: ev.FlowAvailable,
		VectorSteps:   len(ev.VectorSteps),
		EnrichedSteps: ev.EnrichedSteps,
		Degraded:      ev.Degraded,
	}
	for _, a := range assets {
		resp.Assets = append(resp.Assets, evidenceAsset{
			Path:      a.Path,
			Snippet:   a.Snippet,
			IsTest:    a.IsTest,
			Relevance: a.Relevance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	content, err := s.machine.ReadRepoFile(r.URL.Query().Get("repo"), r.URL.Query().Get("branch"), path)
	if err != nil {
		writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{
		Path:    path,
		Content: content,
		Size:    len(content),
		Lines:   strings.Count(content, "\n") + 1,
	})
}

// loadSession fetches the session named in the path, writing the HTTP error
// itself when it cannot.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	sess, err := s.machine.Repo.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return sess, true
}

// writeMachineError maps machine and sandbox errors onto HTTP status codes.
func writeMachineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoScript), errors.Is(err, session.ErrPushBlocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, framework.ErrPathEscape):
		writeError(w, http.StatusForbidden, err.Error())
	case os.IsNotExist(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
