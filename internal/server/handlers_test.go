package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specwright/specwright/internal/evidence"
	"github.com/specwright/specwright/internal/framework"
	"github.com/specwright/specwright/internal/session"
	"github.com/specwright/specwright/internal/trial"
)

type fakeGen struct{}

func (fakeGen) Preview(_ context.Context, scenario string, _ framework.Profile, _ evidence.Context) (string, error) {
	return "1. Open " + scenario, nil
}

func (fakeGen) Refine(_ context.Context, _ string, _ framework.Profile, previous, _ string, _ evidence.Context) (string, error) {
	return previous, nil
}

func (fakeGen) Payload(_ context.Context, scenario string, _ framework.Profile, _ string) (session.Payload, error) {
	return session.Payload{Tests: []session.GeneratedFile{{
		Path:    "tests/generated.spec.ts",
		Content: "test('" + scenario + "', async () => {});\n",
	}}}, nil
}

type fakeRunner struct{ result trial.Result }

func (r fakeRunner) Run(_ context.Context, _ framework.Profile, _ string, _ trial.Credentials) (trial.Result, error) {
	return r.result, nil
}

func (r fakeRunner) RunExisting(_ context.Context, _ framework.Profile, _ string, _ trial.Credentials) (trial.Result, error) {
	return r.result, nil
}

func (r fakeRunner) Stream(_ context.Context, _ framework.Profile, _ string, _ trial.Credentials) <-chan trial.Event {
	ch := make(chan trial.Event, 2)
	res := r.result
	ch <- trial.Event{Type: trial.EventDone, Result: &res}
	close(ch)
	return ch
}

type fixedSearch struct{ steps []evidence.Step }

func (f fixedSearch) SearchSteps(_ context.Context, _ string, _ int) ([]evidence.Step, error) {
	return f.steps, nil
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := &session.Machine{
		Repo: store,
		Gen:  fakeGen{},
		Agg: evidence.Aggregator{Searcher: fixedSearch{steps: []evidence.Step{
			{Action: "Open create supplier page", Locators: map[string]string{"css": "#suppliers"}},
		}}},
		Runner:   fakeRunner{result: trial.Result{Passed: true, Output: "1 passed"}},
		Resolver: &framework.Resolver{DefaultRoot: root},
	}
	return New(Config{Addr: "127.0.0.1:0"}, m), root
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.routes(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestMessageCreatesSessionAndPreview(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.routes(), http.MethodPost, "/sessions/new/message", `{"message":"create supplier"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" || resp.Session.Status != session.StatusPreviewAwaiting {
		t.Fatalf("resp = %+v", resp)
	}

	// The session persisted and is fetchable.
	rec = doJSON(t, s.routes(), http.MethodGet, "/sessions/"+resp.SessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}
}

func TestMessageRejectsEmptyBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.routes(), http.MethodPost, "/sessions/new/message", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTrialEndpointGatesOnScript(t *testing.T) {
	s, _ := newTestServer(t)
	// Create a session without a script.
	rec := doJSON(t, s.routes(), http.MethodPost, "/sessions/new/message", `{"message":"create supplier"}`)
	var resp MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, s.routes(), http.MethodPost, "/sessions/"+resp.SessionID+"/trial", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want conflict without a script", rec.Code)
	}

	rec = doJSON(t, s.routes(), http.MethodPost, "/sessions/"+resp.SessionID+"/push", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("push status = %d, want conflict without a passing trial", rec.Code)
	}
}

func TestInspectEndpoint(t *testing.T) {
	s, root := newTestServer(t)
	spec := filepath.Join(root, "tests", "create_supplier.spec.ts")
	if err := os.WriteFile(spec, []byte("test('create supplier', async () => {});\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s.routes(), http.MethodGet, "/inspect?keyword=create+supplier", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp InspectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.VectorSteps != 1 || len(resp.Assets) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Assets[0].Path != "tests/create_supplier.spec.ts" {
		t.Fatalf("asset path = %q", resp.Assets[0].Path)
	}
}

func TestReadFileStaysInsideRepo(t *testing.T) {
	s, root := newTestServer(t)
	if err := os.WriteFile(filepath.Join(root, "tests", "a.spec.ts"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s.routes(), http.MethodGet, "/files?path=tests/a.spec.ts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp FileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("content = %q", resp.Content)
	}

	rec = doJSON(t, s.routes(), http.MethodGet, "/files?path=../../etc/passwd", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("escape status = %d, want forbidden", rec.Code)
	}
}

func TestCSRFBlocksCrossOriginPost(t *testing.T) {
	s, _ := newTestServer(t)
	h := csrfProtect(s.routes())

	req := httptest.NewRequest(http.MethodPost, "/sessions/new/message", strings.NewReader(`{"message":"x"}`))
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want forbidden", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/sessions/new/message", strings.NewReader(`{"message":"create supplier"}`))
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want ok for localhost origin", rec.Code)
	}
}
