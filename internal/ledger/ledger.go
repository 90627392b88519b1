// Package ledger reconciles generated test cases against the team's
// spreadsheet of record (testmanager.xlsx). Matching is forgiving about
// spacing, casing and punctuation so chat phrasing lines up with whatever the
// sheet's authors typed.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/specwright/specwright/internal/evidence"
)

var (
	ErrNoLedger       = errors.New("no test manager workbook found")
	ErrMissingColumns = errors.New("workbook is missing description or execute columns")
)

// Mode describes what an upsert did to the workbook.
type Mode string

const (
	ModeCreated   Mode = "created"
	ModeUpdated   Mode = "updated"
	ModeUnchanged Mode = "unchanged"
	// ModeNoMatch means no row matched and creation was not permitted.
	ModeNoMatch Mode = "no-match"
)

// Entry is one test case to reconcile into the workbook.
type Entry struct {
	TestCaseID    string
	Description   string
	DatasheetName string
	ReferenceID   string
	IDName        string
}

// Result reports the outcome of an upsert. Row is 1-based. PrevExecute is
// the execute cell's value before the upsert, empty for created rows.
type Result struct {
	Mode        Mode
	Row         int
	Path        string
	PrevExecute string
}

// columnCandidates maps each logical field to accepted header spellings,
// normalized. First match wins per field.
var columnCandidates = map[string][]string{
	"description": {"testcasedescription", "scenario", "description"},
	"execute":     {"execute", "run", "enabled"},
	"id":          {"testcaseid", "id", "identifier"},
	"datasheet":   {"datasheetname", "datasheet"},
	"reference":   {"referenceid", "reference"},
	"idname":      {"idname"},
}

// FindPath locates the workbook under dataDir: an exact testmanager.xlsx
// first, otherwise the newest *.xlsx whose name contains "testmanager".
func FindPath(dataDir string) (string, error) {
	direct := filepath.Join(dataDir, "testmanager.xlsx")
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, nil
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoLedger, err)
	}
	var best string
	var bestMod int64
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.IsDir() || !strings.HasSuffix(name, ".xlsx") || !strings.Contains(name, "testmanager") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = filepath.Join(dataDir, e.Name()), mod
		}
	}
	if best == "" {
		return "", ErrNoLedger
	}
	return best, nil
}

// pathLocks serializes upserts per workbook path. Concurrent sessions share
// one ledger; excelize rewrites the whole file on save.
var (
	pathLocksMu sync.Mutex
	pathLocks   = map[string]*sync.Mutex{}
)

func lockFor(path string) *sync.Mutex {
	pathLocksMu.Lock()
	defer pathLocksMu.Unlock()
	mu, ok := pathLocks[path]
	if !ok {
		mu = &sync.Mutex{}
		pathLocks[path] = mu
	}
	return mu
}

type sheet struct {
	file *excelize.File
	name string
	rows [][]string
	cols map[string]int // logical field -> 0-based column
}

func openSheet(path string) (*sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	name := f.GetSheetName(0)
	rows, err := f.GetRows(name)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	s := &sheet{file: f, name: name, rows: rows, cols: map[string]int{}}
	if len(rows) > 0 {
		for i, header := range rows[0] {
			norm := evidence.NormalizeKeyword(header)
			for field, candidates := range columnCandidates {
				if _, taken := s.cols[field]; taken {
					continue
				}
				for _, c := range candidates {
					if norm == c {
						s.cols[field] = i
					}
				}
			}
		}
	}
	return s, nil
}

func (s *sheet) value(row int, field string) string {
	col, ok := s.cols[field]
	if !ok || row >= len(s.rows) || col >= len(s.rows[row]) {
		return ""
	}
	return strings.TrimSpace(s.rows[row][col])
}

func (s *sheet) set(row int, field, v string) error {
	col, ok := s.cols[field]
	if !ok {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	return s.file.SetCellValue(s.name, cell, v)
}

// findRow returns the 0-based row index matching the entry, or -1.
//
// Priority: case-id substring match in either direction, then description
// substring match, then shared-token overlap. The token fallback only counts
// when the best row leads the runner-up by at least 2 tokens; an ambiguous
// overlap is treated as no match rather than risking the wrong row.
func (s *sheet) findRow(entry Entry) int {
	idNorm := evidence.NormalizeKeyword(entry.TestCaseID)
	descNorm := evidence.NormalizeKeyword(entry.Description)

	if idNorm != "" {
		for i := 1; i < len(s.rows); i++ {
			rowID := evidence.NormalizeKeyword(s.value(i, "id"))
			if rowID != "" && (strings.Contains(rowID, idNorm) || strings.Contains(idNorm, rowID)) {
				return i
			}
		}
	}
	if descNorm != "" {
		for i := 1; i < len(s.rows); i++ {
			rowDesc := evidence.NormalizeKeyword(s.value(i, "description"))
			if rowDesc != "" && (strings.Contains(rowDesc, descNorm) || strings.Contains(descNorm, rowDesc)) {
				return i
			}
		}
	}

	entryTokens := tokenSet(entry.Description)
	if len(entryTokens) == 0 {
		return -1
	}
	best, bestScore, runnerUp := -1, 0, 0
	for i := 1; i < len(s.rows); i++ {
		score := 0
		for _, tok := range evidence.Tokens(s.value(i, "description")) {
			if entryTokens[tok] {
				score++
			}
		}
		if score > bestScore {
			best, runnerUp, bestScore = i, bestScore, score
		} else if score > runnerUp {
			runnerUp = score
		}
	}
	if bestScore >= 2 && bestScore-runnerUp >= 2 {
		return best
	}
	return -1
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range evidence.Tokens(text) {
		set[tok] = true
	}
	return set
}

// Upsert reconciles the entry into the workbook at path. A matched row has
// its execute flag forced to Yes and any provided datasheet fields filled in.
// An unmatched entry is appended as a new row when createIfMissing is set,
// and reported as ModeNoMatch otherwise. The file is rewritten only when a
// cell actually changed.
func Upsert(path string, entry Entry, createIfMissing bool) (Result, error) {
	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	s, err := openSheet(path)
	if err != nil {
		return Result{}, err
	}
	defer s.file.Close()

	if _, ok := s.cols["description"]; !ok {
		return Result{}, ErrMissingColumns
	}
	if _, ok := s.cols["execute"]; !ok {
		return Result{}, ErrMissingColumns
	}

	row := s.findRow(entry)
	if row < 0 {
		if !createIfMissing {
			return Result{Mode: ModeNoMatch, Path: path}, nil
		}
		return s.appendRow(path, entry)
	}
	prevExecute := s.value(row, "execute")

	changed := false
	updates := []struct{ field, value string }{
		{"execute", "Yes"},
		{"datasheet", entry.DatasheetName},
		{"reference", entry.ReferenceID},
		{"idname", entry.IDName},
	}
	for _, u := range updates {
		if u.value == "" && u.field != "execute" {
			continue
		}
		if strings.EqualFold(s.value(row, u.field), u.value) {
			continue
		}
		if _, ok := s.cols[u.field]; !ok {
			continue
		}
		if err := s.set(row, u.field, u.value); err != nil {
			return Result{}, err
		}
		changed = true
	}
	if !changed {
		return Result{Mode: ModeUnchanged, Row: row + 1, Path: path, PrevExecute: prevExecute}, nil
	}
	if err := s.file.Save(); err != nil {
		return Result{}, fmt.Errorf("save workbook: %w", err)
	}
	return Result{Mode: ModeUpdated, Row: row + 1, Path: path, PrevExecute: prevExecute}, nil
}

func (s *sheet) appendRow(path string, entry Entry) (Result, error) {
	row := len(s.rows) // 0-based index of the new row
	if row == 0 {
		row = 1 // keep row 1 free for a header even in an empty sheet
	}
	values := []struct{ field, value string }{
		{"id", entry.TestCaseID},
		{"description", entry.Description},
		{"execute", "Yes"},
		{"datasheet", entry.DatasheetName},
		{"reference", entry.ReferenceID},
		{"idname", entry.IDName},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := s.set(row, v.field, v.value); err != nil {
			return Result{}, err
		}
	}
	if err := s.file.Save(); err != nil {
		return Result{}, fmt.Errorf("save workbook: %w", err)
	}
	return Result{Mode: ModeCreated, Row: row + 1, Path: path}, nil
}
