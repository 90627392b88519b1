package generate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/specwright/specwright/internal/evidence"
	"github.com/specwright/specwright/internal/framework"
)

func testFramework() framework.Profile {
	return framework.Profile{Root: "/repo", TestsDir: "tests", PagesDir: "tests/pages"}
}

func shCommand(script string) Command {
	return Command{Executable: "sh", Args: []string{"-c", script}}
}

func TestCommandPreview(t *testing.T) {
	c := shCommand(`cat >/dev/null; echo '{"text":"1. Open the login page"}'`)
	text, err := c.Preview(context.Background(), "login as admin", testFramework(), evidence.Context{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if text != "1. Open the login page" {
		t.Errorf("text = %q", text)
	}
}

func TestCommandPreviewReadsRequest(t *testing.T) {
	// The generator inspects its stdin, so a wrong request shape fails here.
	c := shCommand(`grep -q '"op":"preview"' && echo '{"text":"ok"}' || echo '{"error":"bad request"}'`)
	text, err := c.Preview(context.Background(), "login", testFramework(), evidence.Context{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q", text)
	}
}

func TestCommandPayload(t *testing.T) {
	c := shCommand(`cat >/dev/null; echo '{"payload":{"tests":[{"path":"tests/login.spec.ts","content":"ts"}]}}'`)
	p, err := c.Payload(context.Background(), "login", testFramework(), "preview text")
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if len(p.Tests) != 1 || p.Tests[0].Path != "tests/login.spec.ts" {
		t.Errorf("payload = %+v", p)
	}
}

func TestCommandErrorResponse(t *testing.T) {
	c := shCommand(`cat >/dev/null; echo '{"error":"model unavailable"}'`)
	_, err := c.Preview(context.Background(), "login", testFramework(), evidence.Context{})
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("err = %v", err)
	}
}

func TestCommandMalformedResponse(t *testing.T) {
	c := shCommand(`cat >/dev/null; echo 'not json'`)
	_, err := c.Preview(context.Background(), "login", testFramework(), evidence.Context{})
	if err == nil || !strings.Contains(err.Error(), "malformed response") {
		t.Errorf("err = %v", err)
	}
}

func TestCommandNonzeroExit(t *testing.T) {
	c := shCommand(`cat >/dev/null; echo 'boom' >&2; exit 3`)
	_, err := c.Preview(context.Background(), "login", testFramework(), evidence.Context{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v", err)
	}
}

func TestCommandTimeout(t *testing.T) {
	c := shCommand(`sleep 30`)
	c.Timeout = 100 * time.Millisecond
	start := time.Now()
	_, err := c.Preview(context.Background(), "login", testFramework(), evidence.Context{})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not cut the subprocess short")
	}
}
