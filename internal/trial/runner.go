package trial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/specwright/specwright/internal/framework"
)

// DefaultTimeout bounds a single trial execution.
const DefaultTimeout = 300 * time.Second

// Runner executes generated or existing Playwright specs against a target
// repository. The zero value runs "npx playwright test" with the default
// timeout.
type Runner struct {
	Timeout time.Duration
	Logger  *log.Logger

	// Command overrides the runner invocation, mainly for tests. The spec
	// path is appended as the final argument.
	Command []string
}

// Result is the outcome of one trial execution.
type Result struct {
	Passed      bool
	ExitCode    int
	Output      string
	TimedOut    bool
	Duration    time.Duration
	SpecPath    string // repo-relative path of the executed spec
	Unskipped   int
	StubsMade   int
	PassedCount int
	Banner      string
}

func (r Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r Runner) command() []string {
	if len(r.Command) > 0 {
		return r.Command
	}
	return []string{"npx", "playwright", "test"}
}

func (r Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

// Run executes a generated script once. The script is written to a temporary
// spec file inside the repository's test directory, with skips removed and
// missing page objects stubbed; every file created for the trial is removed
// before Run returns, on success and failure alike.
func (r Runner) Run(ctx context.Context, fw framework.Profile, script string, creds Credentials) (Result, error) {
	return r.run(ctx, fw, script, creds, nil)
}

func (r Runner) run(ctx context.Context, fw framework.Profile, script string, creds Credentials, sink func(string)) (Result, error) {
	unskipped, n := Unskip(script)

	stubs, err := EnsurePageStubs(fw, unskipped)
	defer RemoveFiles(stubs)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize page stubs: %w", err)
	}

	specRel := filepath.Join(fw.TestsDir, fmt.Sprintf("trial_%s.spec.ts", strings.ToLower(ulid.Make().String())))
	specAbs, err := framework.ResolveWithin(fw.Root, specRel)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(specAbs), 0o755); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(specAbs, []byte(unskipped), 0o644); err != nil {
		return Result{}, fmt.Errorf("write trial spec: %w", err)
	}
	defer os.Remove(specAbs)

	res, err := r.execute(ctx, fw, specRel, creds, sink)
	res.Unskipped = n
	res.StubsMade = len(stubs)
	return res, err
}

// RunExisting executes a spec file already present in the repository. The
// path is resolved inside the repository root; a file that still carries
// skips is executed through a temporary unskipped copy which is removed
// afterwards.
func (r Runner) RunExisting(ctx context.Context, fw framework.Profile, relPath string, creds Credentials) (Result, error) {
	abs, err := framework.ResolveWithin(fw.Root, relPath)
	if err != nil {
		return Result{}, err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("read spec: %w", err)
	}
	script := string(b)
	if !HasSkips(script) {
		res, err := r.execute(ctx, fw, relPath, creds, nil)
		return res, err
	}
	unskipped, n := Unskip(script)
	dir := filepath.Dir(relPath)
	tmpRel := filepath.Join(dir, fmt.Sprintf("trial_%s.spec.ts", strings.ToLower(ulid.Make().String())))
	tmpAbs, err := framework.ResolveWithin(fw.Root, tmpRel)
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(tmpAbs, []byte(unskipped), 0o644); err != nil {
		return Result{}, fmt.Errorf("write trial spec: %w", err)
	}
	defer os.Remove(tmpAbs)

	res, err := r.execute(ctx, fw, tmpRel, creds, nil)
	res.Unskipped = n
	res.SpecPath = relPath
	return res, err
}

func (r Runner) execute(ctx context.Context, fw framework.Profile, specRel string, creds Credentials, sink func(string)) (Result, error) {
	banner := Banner(creds)
	r.logf("%s", banner)

	cctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	args := append(append([]string{}, r.command()...), filepath.ToSlash(specRel))
	cmd := exec.CommandContext(cctx, args[0], args[1:]...)
	cmd.Dir = fw.Root
	cmd.Env = append(os.Environ(), Env(creds)...)
	cmd.Stdin = strings.NewReader("")
	// Run in its own process group so the whole tree dies on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 3 * time.Second

	var buf bytes.Buffer
	var out io.Writer = &buf
	var lw *lineWriter
	if sink != nil {
		lw = &lineWriter{fn: sink}
		out = io.MultiWriter(&buf, lw)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err := cmd.Run()
	if lw != nil {
		lw.Flush()
	}

	// Logs always open with the masked credential banner.
	res := Result{
		Output:      banner + "\n" + buf.String(),
		Duration:    time.Since(start),
		SpecPath:    filepath.ToSlash(specRel),
		Banner:      banner,
		PassedCount: PassedCount(buf.String()),
	}
	if cctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res, fmt.Errorf("trial timed out after %s", r.timeout())
	}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		// The runner never launched. That is a failed trial, not an
		// orchestration error, so it lands in the logs like any other failure.
		res.ExitCode = -1
		res.Output += fmt.Sprintf("failed to start trial: %v\n", err)
		return res, nil
	}
	res.Passed = true
	return res, nil
}

// lineWriter forwards complete output lines to fn.
type lineWriter struct {
	fn  func(string)
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			w.buf.WriteString(line)
			break
		}
		w.fn(strings.TrimRight(line, "\n"))
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	if w.buf.Len() > 0 {
		w.fn(w.buf.String())
	}
}
