// Package generate adapts an external script-generation command to the
// session machine. The generation capability itself (prompting, models) is
// outside this program; we only speak its stdin/stdout contract.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/specwright/specwright/internal/evidence"
	"github.com/specwright/specwright/internal/framework"
	"github.com/specwright/specwright/internal/session"
)

// Command invokes an external generator executable once per operation. The
// request is JSON on stdin; the response is JSON on stdout.
type Command struct {
	Executable string
	Args       []string
	Timeout    time.Duration
	Logger     *log.Logger
}

type request struct {
	Op        string           `json:"op"`
	Scenario  string           `json:"scenario"`
	Framework frameworkInfo    `json:"framework"`
	Evidence  evidence.Context `json:"evidence,omitempty"`
	Previous  string           `json:"previous,omitempty"`
	Feedback  string           `json:"feedback,omitempty"`
	Preview   string           `json:"preview,omitempty"`
}

type frameworkInfo struct {
	Root     string `json:"root"`
	TestsDir string `json:"tests_dir"`
	PagesDir string `json:"pages_dir"`
}

type response struct {
	Text    string          `json:"text,omitempty"`
	Payload session.Payload `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c Command) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 2 * time.Minute
}

func (c Command) call(ctx context.Context, req request) (response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return response{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	cmd := exec.CommandContext(cctx, c.Executable, c.Args...)
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return response{}, fmt.Errorf("generator %s timed out after %s", req.Op, c.timeout())
		}
		return response{}, fmt.Errorf("generator %s: %w: %s", req.Op, err, strings.TrimSpace(stderr.String()))
	}
	if c.Logger != nil && stderr.Len() > 0 {
		c.Logger.Printf("generator %s stderr: %s", req.Op, strings.TrimSpace(stderr.String()))
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return response{}, fmt.Errorf("generator %s: malformed response: %w", req.Op, err)
	}
	if resp.Error != "" {
		return response{}, fmt.Errorf("generator %s: %s", req.Op, resp.Error)
	}
	return resp, nil
}

func frameworkRequest(fw framework.Profile) frameworkInfo {
	return frameworkInfo{Root: fw.Root, TestsDir: fw.TestsDir, PagesDir: fw.PagesDir}
}

func (c Command) Preview(ctx context.Context, scenario string, fw framework.Profile, ev evidence.Context) (string, error) {
	resp, err := c.call(ctx, request{Op: "preview", Scenario: scenario, Framework: frameworkRequest(fw), Evidence: ev})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c Command) Refine(ctx context.Context, scenario string, fw framework.Profile, previous, feedback string, ev evidence.Context) (string, error) {
	resp, err := c.call(ctx, request{
		Op: "refine", Scenario: scenario, Framework: frameworkRequest(fw),
		Evidence: ev, Previous: previous, Feedback: feedback,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c Command) Payload(ctx context.Context, scenario string, fw framework.Profile, preview string) (session.Payload, error) {
	resp, err := c.call(ctx, request{Op: "payload", Scenario: scenario, Framework: frameworkRequest(fw), Preview: preview})
	if err != nil {
		return session.Payload{}, err
	}
	return resp.Payload, nil
}
