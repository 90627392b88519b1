package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/specwright/specwright/internal/evidence"
	"github.com/specwright/specwright/internal/framework"
	"github.com/specwright/specwright/internal/gitutil"
	"github.com/specwright/specwright/internal/ledger"
	"github.com/specwright/specwright/internal/trial"
)

// Generator is the opaque script-generation capability. Implementations wrap
// an LLM; the machine never calls them without evidence.
type Generator interface {
	// Preview renders a numbered step plan for the scenario.
	Preview(ctx context.Context, scenario string, fw framework.Profile, ev evidence.Context) (string, error)
	// Refine rewrites a previously rendered preview with user feedback.
	Refine(ctx context.Context, scenario string, fw framework.Profile, previous, feedback string, ev evidence.Context) (string, error)
	// Payload turns an accepted preview into concrete framework files.
	Payload(ctx context.Context, scenario string, fw framework.Profile, preview string) (Payload, error)
}

// Payload is the set of files the generation capability produced.
type Payload struct {
	Locators []GeneratedFile `msgpack:"locators" json:"locators,omitempty"`
	Pages    []GeneratedFile `msgpack:"pages" json:"pages,omitempty"`
	Tests    []GeneratedFile `msgpack:"tests" json:"tests,omitempty"`
}

// GeneratedFile is one produced file, path relative to the repository root.
type GeneratedFile struct {
	Path    string `msgpack:"path" json:"path"`
	Content string `msgpack:"content" json:"content"`
}

// Files returns all payload files in write order: locators, pages, tests.
func (p Payload) Files() []GeneratedFile {
	out := make([]GeneratedFile, 0, len(p.Locators)+len(p.Pages)+len(p.Tests))
	out = append(out, p.Locators...)
	out = append(out, p.Pages...)
	out = append(out, p.Tests...)
	return out
}

// TrialRunner abstracts trial execution so tests can fake it.
type TrialRunner interface {
	Run(ctx context.Context, fw framework.Profile, script string, creds trial.Credentials) (trial.Result, error)
	RunExisting(ctx context.Context, fw framework.Profile, relPath string, creds trial.Credentials) (trial.Result, error)
	Stream(ctx context.Context, fw framework.Profile, script string, creds trial.Credentials) <-chan trial.Event
}

var (
	ErrPushBlocked = errors.New("push requires a passing trial")
	ErrNoScript    = errors.New("session has no generated script")
)

// Machine wires the collaborators behind every session operation. Methods
// mutate the session they are given and persist it through Repo.
type Machine struct {
	Repo     Repository
	Gen      Generator
	Agg      evidence.Aggregator
	Runner   TrialRunner
	Resolver *framework.Resolver
	Creds    trial.Source
	Logger   *log.Logger

	// Remote is the git remote pushed to, default "origin".
	Remote string
}

func (m *Machine) logf(format string, args ...any) {
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

func (m *Machine) remote() string {
	if m.Remote != "" {
		return m.Remote
	}
	return "origin"
}

func (m *Machine) save(s *Session) error {
	s.touch()
	if m.Repo == nil {
		return nil
	}
	return m.Repo.Put(s)
}

// Load returns the session for id, or a fresh one when id is empty or
// unknown.
func (m *Machine) Load(id string) *Session {
	if id != "" && m.Repo != nil {
		if s, err := m.Repo.Get(id); err == nil {
			return s
		}
	}
	return New()
}

func (m *Machine) framework(s *Session) (framework.Profile, error) {
	if m.Resolver == nil {
		return framework.Profile{}, errors.New("no repository resolver configured")
	}
	root, branch, err := m.Resolver.Resolve(s.RepoRef, s.Branch)
	if err != nil {
		return framework.Profile{}, err
	}
	s.Branch = branch
	return framework.FromRoot(root), nil
}

// HandleMessage advances the session with one chat message and returns the
// reply to show the user.
func (m *Machine) HandleMessage(ctx context.Context, s *Session, msg string) (string, error) {
	intent := DetectIntent(s.Status, msg)
	m.logf("session %s status=%s intent=%s", s.ID, s.Status, intent)

	var reply string
	var err error
	switch intent {
	case IntentConfirm:
		reply, err = m.confirmPreview(ctx, s)
	case IntentDecline:
		s.Status = StatusIdle
		s.Preview = ""
		reply = "Discarded the preview. Describe another scenario when ready."
	case IntentUseDefaults:
		reply, err = m.applyDatasheet(s, m.datasheetDefaults(s))
	case IntentDatasheet:
		fields, ok := ParseDatasheetMessage(msg)
		if !ok {
			reply = "Tell me the datasheet like: datasheet MyData.xlsx reference MyRef001 idname MyID, or say 'use defaults'."
		} else {
			defaults := m.datasheetDefaults(s)
			if fields.ReferenceID == "" {
				fields.ReferenceID = defaults.ReferenceID
			}
			if fields.IDName == "" {
				fields.IDName = defaults.IDName
			}
			reply, err = m.applyDatasheet(s, fields)
		}
	case IntentTrial:
		reply, err = m.runTrial(ctx, s)
	case IntentPush:
		reply, err = m.push(s)
	case IntentCompare:
		reply = m.compare(s)
	case IntentLatestFlow:
		reply = m.latestFlow()
	case IntentFeedback:
		reply, err = m.refinePreview(ctx, s, msg)
	default:
		reply, err = m.startScenario(ctx, s, msg)
	}
	if err != nil {
		return "", err
	}
	return reply, m.save(s)
}

// startScenario gathers evidence for a new scenario. Matching repository
// assets close the session only when nothing newer argues for a fresh test;
// with no evidence at all the machine refuses rather than inventing steps.
func (m *Machine) startScenario(ctx context.Context, s *Session, msg string) (string, error) {
	scenario := strings.TrimSpace(msg)
	if scenario == "" {
		return "Describe the scenario you want a test for.", nil
	}

	if evidence.NormalizeKeyword(scenario) != evidence.NormalizeKeyword(s.Scenario) {
		s.Scenario = scenario
		s.Preview = ""
		s.Script = ""
		s.ScriptPath = ""
		s.Files = nil
		s.LastTrial = nil
		s.Evidence = nil
		s.Feedback = nil
		s.ExistingFiles = nil
		s.WrittenFiles = nil
		s.UpdatedConfigs = nil
		s.PendingTestIDs = nil
		s.Datasheet = DatasheetFields{}
		s.Status = StatusIdle
	}
	s.Active = true

	ev := m.Agg.Gather(ctx, s.Scenario)
	fw, fwErr := m.framework(s)
	var assets []evidence.ExistingAsset
	if fwErr == nil {
		assets = m.Agg.GatherAssets(fw, s.Scenario)
	}
	if len(assets) > 0 {
		s.ExistingFiles = s.ExistingFiles[:0]
		for _, a := range assets {
			s.ExistingFiles = append(s.ExistingFiles, a.Path)
		}
		// Assets settle the scenario only when no refined flow or indexed
		// steps exist and the user didn't ask for refined steps outright.
		if !ev.FlowAvailable && len(ev.VectorSteps) == 0 && !WantsRefinedSteps(msg) {
			note := m.enableExistingTests(s, fw, assets)
			s.Status = StatusComplete
			s.Active = false
			return evidence.SummarizeAssets(assets) + note +
				"\n\nThese cover the scenario already. Ask for refined steps to generate a new test anyway.", nil
		}
	}

	if len(assets) == 0 && ev.Empty() {
		s.Status = StatusComplete
		s.Active = false
		reason := "I couldn't find any recorded steps or indexed evidence for that scenario, so I won't invent a test."
		if len(ev.Degraded) > 0 {
			reason += " Degraded sources: " + strings.Join(ev.Degraded, "; ") + "."
		}
		return reason + " Record the flow first, then try again.", nil
	}
	s.Evidence = &ev

	preview, err := m.Gen.Preview(ctx, s.Scenario, fw, ev)
	if err != nil {
		return "", fmt.Errorf("generate preview: %w", err)
	}
	s.Preview = preview
	s.Status = StatusPreviewAwaiting
	return preview + "\n\nReply 'yes' to generate the script.", nil
}

// confirmPreview turns the accepted preview into concrete framework files,
// then asks which datasheet the generated test should read. Defaults derive
// from the first test id the script declares.
func (m *Machine) confirmPreview(ctx context.Context, s *Session) (string, error) {
	if s.Status != StatusPreviewAwaiting {
		return "Nothing is awaiting confirmation.", nil
	}
	fw, err := m.framework(s)
	if err != nil {
		return "", err
	}
	payload, err := m.Gen.Payload(ctx, s.Scenario, fw, s.Preview)
	if err != nil {
		return "", fmt.Errorf("generate payload: %w", err)
	}
	if len(payload.Tests) == 0 {
		return "", fmt.Errorf("generation produced no test file")
	}
	s.Files = payload.Files()
	s.Script = payload.Tests[0].Content
	s.ScriptPath = payload.Tests[0].Path
	s.PendingTestIDs = ExtractTestIDs(s.Script)
	s.LastTrial = nil
	s.Status = StatusAwaitingDatasheet

	d := m.datasheetDefaults(s)
	return fmt.Sprintf("Generated %d files (test %s). Which datasheet should the test read? Say 'use defaults' for %s / %s / %s, or give your own: datasheet <name> reference <id> idname <column>.",
		len(s.Files), s.ScriptPath, d.Name, d.ReferenceID, d.IDName), nil
}

// datasheetDefaults derives the conventional datasheet fields from the first
// generated test id, falling back to the scenario when the script named none.
func (m *Machine) datasheetDefaults(s *Session) DatasheetFields {
	if len(s.PendingTestIDs) > 0 {
		return DefaultDatasheetFields(s.PendingTestIDs[0])
	}
	return DefaultDatasheetFields(s.Scenario)
}

// applyDatasheet records the datasheet fields on the generated script and
// reconciles the spreadsheet of record.
func (m *Machine) applyDatasheet(s *Session, fields DatasheetFields) (string, error) {
	if s.Status != StatusAwaitingDatasheet {
		return "I'm not waiting for datasheet details right now.", nil
	}
	if s.Script == "" {
		return "", ErrNoScript
	}
	s.Datasheet = fields
	s.Status = StatusScriptReady

	note := m.reconcileLedger(s)
	return fmt.Sprintf("Script ready (%d files, test %s).%s\nSay 'trial' to run it once, or send feedback to refine it.",
		len(s.Files), s.ScriptPath, note), nil
}

// reconcileLedger upserts the scenario into testmanager.xlsx. A missing
// ledger is reported, not fatal.
func (m *Machine) reconcileLedger(s *Session) string {
	fw, err := m.framework(s)
	if err != nil {
		return ""
	}
	path, err := ledger.FindPath(fw.DataPath())
	if err != nil {
		if errors.Is(err, ledger.ErrNoLedger) {
			return " No test manager workbook found; skipped the ledger."
		}
		return ""
	}
	// One row per extracted test id, or a single row for the scenario when
	// the script named none.
	entries := []ledger.Entry{{
		Description:   s.Scenario,
		DatasheetName: s.Datasheet.Name,
		ReferenceID:   s.Datasheet.ReferenceID,
		IDName:        s.Datasheet.IDName,
	}}
	if len(s.PendingTestIDs) > 0 {
		entries = entries[:0]
		for _, id := range s.PendingTestIDs {
			entries = append(entries, ledger.Entry{
				TestCaseID:    id,
				Description:   s.Scenario,
				DatasheetName: s.Datasheet.Name,
				ReferenceID:   s.Datasheet.ReferenceID,
				IDName:        s.Datasheet.IDName,
			})
		}
	}

	var last ledger.Result
	for _, e := range entries {
		res, err := ledger.Upsert(path, e, true)
		if err != nil {
			m.logf("ledger upsert failed: %v", err)
			return fmt.Sprintf(" Ledger update failed: %v.", err)
		}
		if res.Mode != ledger.ModeUnchanged {
			s.noteUpdatedConfig(res.Path)
		}
		last = res
	}
	s.PendingTestIDs = nil
	if len(entries) > 1 {
		return fmt.Sprintf(" Ledger reconciled %d test ids in %s.", len(entries), filepath.Base(last.Path))
	}
	return fmt.Sprintf(" Ledger row %d %s in %s.", last.Row, last.Mode, filepath.Base(last.Path))
}

// enableExistingTests flips the ledger rows for the test ids declared by
// matching assets to execute again. Rows are matched only, never created;
// an asset id with no row is left alone.
func (m *Machine) enableExistingTests(s *Session, fw framework.Profile, assets []evidence.ExistingAsset) string {
	path, err := ledger.FindPath(fw.DataPath())
	if err != nil {
		return ""
	}
	var ids []string
	seen := map[string]bool{}
	for _, a := range assets {
		if !strings.HasSuffix(a.Path, ".ts") {
			continue
		}
		abs, err := framework.ResolveWithin(fw.Root, a.Path)
		if err != nil {
			continue
		}
		b, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		for _, id := range ExtractTestIDs(string(b)) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	enabled := 0
	for _, id := range ids {
		res, err := ledger.Upsert(path, ledger.Entry{TestCaseID: id}, false)
		if err != nil {
			m.logf("ledger enable %s: %v", id, err)
			continue
		}
		if res.Mode == ledger.ModeNoMatch {
			continue
		}
		if res.Mode != ledger.ModeUnchanged {
			s.noteUpdatedConfig(res.Path)
		}
		enabled++
	}
	if enabled == 0 {
		return ""
	}
	return fmt.Sprintf("\nEnabled %d existing test id(s) in %s.", enabled, filepath.Base(path))
}

// refinePreview folds user feedback into the step preview and returns the
// session to confirmation. Context is gathered again so a flow recorded since
// the first preview is picked up, and any already generated files are
// discarded; the next confirmation regenerates them from the updated preview.
func (m *Machine) refinePreview(ctx context.Context, s *Session, feedback string) (string, error) {
	if s.Preview == "" {
		return "Describe a scenario first; there is no preview to refine.", nil
	}
	fw, err := m.framework(s)
	if err != nil {
		return "", err
	}
	hadFlow := s.Evidence != nil && s.Evidence.FlowAvailable
	ev := m.Agg.Gather(ctx, s.Scenario)
	preview, err := m.Gen.Refine(ctx, s.Scenario, fw, s.Preview, feedback, ev)
	if err != nil {
		return "", fmt.Errorf("refine preview: %w", err)
	}
	s.Evidence = &ev
	s.Feedback = append(s.Feedback, feedback)
	s.Preview = preview
	s.Script = ""
	s.ScriptPath = ""
	s.Files = nil
	s.WrittenFiles = nil
	s.PendingTestIDs = nil
	s.Datasheet = DatasheetFields{}
	s.LastTrial = nil
	s.Status = StatusPreviewAwaiting

	reply := preview + "\n\nReply 'yes' to generate the script."
	if !hadFlow && ev.FlowAvailable {
		reply = "A refined flow is now available and was folded into the steps.\n\n" + reply
	}
	return reply, nil
}

// credentials resolves the login details for a trial of this session. A
// missing source or a resolution error degrades to empty credentials; the
// trial still runs, it just logs in with nothing.
func (m *Machine) credentials(fw framework.Profile, s *Session) trial.Credentials {
	if m.Creds == nil {
		return trial.Credentials{}
	}
	caseID := s.Scenario
	if len(s.PendingTestIDs) > 0 {
		caseID = s.PendingTestIDs[0]
	}
	creds, err := m.Creds.Resolve(fw.Root, caseID, s.ScriptPath)
	if err != nil {
		m.logf("resolve credentials: %v", err)
		return trial.Credentials{}
	}
	return creds
}

func (m *Machine) runTrial(ctx context.Context, s *Session) (string, error) {
	if s.Script == "" {
		return "", ErrNoScript
	}
	fw, err := m.framework(s)
	if err != nil {
		return "", err
	}
	res, runErr := m.Runner.Run(ctx, fw, s.Script, m.credentials(fw, s))
	s.LastTrial = recordTrial(res)
	if runErr != nil && !res.TimedOut {
		return "", runErr
	}
	if res.TimedOut {
		return "Trial timed out; the script and its temp files were cleaned up. Refine and try again.", nil
	}
	if res.Passed {
		s.Status = StatusReadyForPush
		return fmt.Sprintf("Trial passed (%s). Say 'push' to commit the test.", trial.SummaryLine(res.Output)), nil
	}
	s.Status = StatusScriptReady
	return fmt.Sprintf("Trial failed with exit code %d.\n%s\nSend feedback to refine the script.",
		res.ExitCode, trial.SummaryLine(res.Output)), nil
}

// Persist writes the generated payload into the repository. Every path is
// resolved against the repository root; one escaping path aborts the whole
// write.
func (m *Machine) Persist(s *Session) (string, error) {
	if s.Script == "" {
		return "", ErrNoScript
	}
	fw, err := m.framework(s)
	if err != nil {
		return "", err
	}

	files := s.Files
	if len(files) == 0 {
		rel := filepath.Join(fw.TestsDir, specFileName(s.Scenario))
		files = []GeneratedFile{{Path: filepath.ToSlash(rel), Content: s.Script}}
	}
	for _, f := range files {
		if _, err := framework.ResolveWithin(fw.Root, f.Path); err != nil {
			return "", fmt.Errorf("payload path %s: %w", f.Path, err)
		}
	}
	written := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := framework.ResolveWithin(fw.Root, f.Path)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(abs, []byte(f.Content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", f.Path, err)
		}
		written = append(written, f.Path)
	}
	s.WrittenFiles = written
	if s.ScriptPath == "" {
		s.ScriptPath = files[len(files)-1].Path
	}
	return s.ScriptPath, nil
}

func (m *Machine) push(s *Session) (string, error) {
	if !s.CanPush() {
		if s.Script == "" {
			return "", ErrNoScript
		}
		return "", ErrPushBlocked
	}
	fw, err := m.framework(s)
	if err != nil {
		return "", err
	}
	if _, err := m.Persist(s); err != nil {
		return "", err
	}
	if !gitutil.IsRepo(fw.Root) {
		return "", fmt.Errorf("%s is not a git repository", fw.Root)
	}

	branch := pushBranchName(s)
	if err := gitutil.CheckoutNewBranch(fw.Root, branch); err != nil {
		return "", err
	}
	if err := gitutil.AddAll(fw.Root); err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Add %s scenario test", strings.TrimSpace(s.Scenario))
	if err := gitutil.CommitAll(fw.Root, msg); err != nil {
		return "", err
	}
	if err := gitutil.PushBranch(fw.Root, m.remote(), branch); err != nil {
		return "", err
	}
	s.PushedBranch = branch
	s.Status = StatusComplete
	s.Active = false
	return fmt.Sprintf("Pushed %s on branch %s. Session complete.", s.ScriptPath, branch), nil
}

func (m *Machine) compare(s *Session) string {
	if s.Script == "" {
		return "Generate a script first, then I can compare it against the recorded flow."
	}
	flow, ok := m.Agg.Flows.FindByKeyword(s.Scenario, true)
	if !ok {
		return "No refined flow on record to compare against."
	}
	return evidence.SummarizeLatestFlow(flow) + "\n\n" + evidence.CompareCoverage(s.Script, flow.Steps)
}

func (m *Machine) latestFlow() string {
	flow, ok := m.Agg.Flows.Latest(6)
	if !ok {
		return "No refined flows on record yet. Record a flow first."
	}
	return evidence.SummarizeLatestFlow(flow)
}

// RunTrial runs the session's script once and persists the outcome.
func (m *Machine) RunTrial(ctx context.Context, s *Session) (string, error) {
	reply, err := m.runTrial(ctx, s)
	if err != nil {
		return "", err
	}
	return reply, m.save(s)
}

// StreamTrial starts a streamed trial of the session's script. The caller
// consumes the events; terminal events should be fed back through
// RecordTrial so the session's push gate reflects the outcome.
func (m *Machine) StreamTrial(ctx context.Context, s *Session) (<-chan trial.Event, error) {
	if s.Script == "" {
		return nil, ErrNoScript
	}
	fw, err := m.framework(s)
	if err != nil {
		return nil, err
	}
	return m.Runner.Stream(ctx, fw, s.Script, m.credentials(fw, s)), nil
}

// RecordTrial stores a trial outcome on the session and advances the status.
func (m *Machine) RecordTrial(s *Session, res trial.Result) error {
	s.LastTrial = recordTrial(res)
	if res.Passed {
		s.Status = StatusReadyForPush
	} else if s.Script != "" {
		s.Status = StatusScriptReady
	}
	return m.save(s)
}

// Push commits and pushes the session's script, then persists the session.
func (m *Machine) Push(s *Session) (string, error) {
	reply, err := m.push(s)
	if err != nil {
		return "", err
	}
	return reply, m.save(s)
}

// TrialExisting runs a spec file already in the repository, without a
// session script. Credentials resolve against the spec path itself.
func (m *Machine) TrialExisting(ctx context.Context, repoRef, branch, relPath string) (trial.Result, error) {
	s := &Session{RepoRef: repoRef, Branch: branch, ScriptPath: relPath}
	fw, err := m.framework(s)
	if err != nil {
		return trial.Result{}, err
	}
	return m.Runner.RunExisting(ctx, fw, relPath, m.credentials(fw, s))
}

// Inspect reports the evidence and repository assets available for a
// keyword without mutating any session.
func (m *Machine) Inspect(ctx context.Context, repoRef, branch, keyword string) (evidence.Context, []evidence.ExistingAsset) {
	ev := m.Agg.Gather(ctx, keyword)
	s := &Session{RepoRef: repoRef, Branch: branch}
	fw, err := m.framework(s)
	if err != nil {
		return ev, nil
	}
	return ev, m.Agg.GatherAssets(fw, keyword)
}

// maxReadFileBytes caps GET /files responses.
const maxReadFileBytes = 1 << 20

// ReadRepoFile returns the contents of a file inside the repository. The
// path is resolved against the repository root and may not escape it.
func (m *Machine) ReadRepoFile(repoRef, branch, relPath string) (string, error) {
	s := &Session{RepoRef: repoRef, Branch: branch}
	fw, err := m.framework(s)
	if err != nil {
		return "", err
	}
	abs, err := framework.ResolveWithin(fw.Root, relPath)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	if len(b) > maxReadFileBytes {
		b = b[:maxReadFileBytes]
	}
	return string(b), nil
}

// specFileName renders "Create Supplier" as create_supplier.spec.ts.
func specFileName(scenario string) string {
	tokens := evidence.Tokens(scenario)
	if len(tokens) == 0 {
		return "scenario.spec.ts"
	}
	return strings.Join(tokens, "_") + ".spec.ts"
}

func pushBranchName(s *Session) string {
	tokens := evidence.Tokens(s.Scenario)
	slug := "scenario"
	if len(tokens) > 0 {
		slug = strings.Join(tokens, "-")
	}
	id := strings.ToLower(s.ID)
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return fmt.Sprintf("specwright/%s-%s", slug, id)
}
