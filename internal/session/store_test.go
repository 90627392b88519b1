package session

import (
	"errors"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	s := New()
	s.Scenario = "create supplier"
	s.Status = StatusScriptReady
	s.Script = "test('x', async () => {});"
	s.Datasheet = DatasheetFields{Name: "CreateSupplierData.xlsx", ReferenceID: "CreateSupplier001", IDName: "CreateSupplierID"}
	s.LastTrial = &TrialRecord{Passed: true, PassedCount: 2, At: time.Now().UTC()}
	if err := store.Put(s); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scenario != s.Scenario || got.Status != s.Status || got.Script != s.Script {
		t.Fatalf("got %+v", got)
	}
	if got.Datasheet != s.Datasheet {
		t.Fatalf("datasheet = %+v", got.Datasheet)
	}
	if got.LastTrial == nil || !got.LastTrial.Passed || got.LastTrial.PassedCount != 2 {
		t.Fatalf("last trial = %+v", got.LastTrial)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := store.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreListNewestFirst(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	older := New()
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	newer := New()
	newer.UpdatedAt = time.Now().UTC()
	for _, s := range []*Session{older, newer} {
		if err := store.Put(s); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("list = %v", list)
	}
}
