package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/safething/safething-go/pkg/model"
)

func TestLedger(t *testing.T) {
	t.Run("OpenNonExistent", func(t *testing.T) {
		dir := t.TempDir()
		l, err := OpenLedger(filepath.Join(dir, "ledger.json"), "controller")
		if err != nil {
			t.Fatalf("OpenLedger() error = %v", err)
		}
		if len(l.Entries()) != 0 {
			t.Errorf("Entries() = %v, want empty", l.Entries())
		}
	})

	t.Run("RecordAndReload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "ledger.json")
		l, err := OpenLedger(path, "controller")
		if err != nil {
			t.Fatalf("OpenLedger() error = %v", err)
		}

		if err := l.Record(Entry{RequestID: 2, Target: "printer-01", Action: "print", Args: []string{"a.pdf"}}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if err := l.Record(Entry{RequestID: 1, Target: "printer-02", Action: "scan"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if err := l.Update(2, "InProgress"); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		reloaded, err := OpenLedger(path, "controller")
		if err != nil {
			t.Fatalf("OpenLedger() reload error = %v", err)
		}
		entries := reloaded.Entries()
		if len(entries) != 2 {
			t.Fatalf("Entries() len = %d, want 2", len(entries))
		}
		if entries[0].RequestID != 1 || entries[1].RequestID != 2 {
			t.Errorf("Entries() not ordered by id: %v", entries)
		}
		if entries[0].State != model.StateRequested {
			t.Errorf("default State = %q, want Requested", entries[0].State)
		}
		if entries[1].State != "InProgress" {
			t.Errorf("State = %q, want InProgress", entries[1].State)
		}
		if entries[1].SentAt.IsZero() {
			t.Error("SentAt not set")
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("temporary file left behind")
		}
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		l, _ := OpenLedger(filepath.Join(t.TempDir(), "ledger.json"), "controller")
		if err := l.Update(42, model.StateDone); !errors.Is(err, ErrUnknownRequest) {
			t.Errorf("Update() error = %v, want ErrUnknownRequest", err)
		}
	})

	t.Run("Pending", func(t *testing.T) {
		l, _ := OpenLedger(filepath.Join(t.TempDir(), "ledger.json"), "controller")
		now := time.Now()

		_ = l.Record(Entry{RequestID: 1, Target: "t-0001", SentAt: now.Add(-10 * time.Second)})
		_ = l.Record(Entry{RequestID: 2, Target: "t-0001", SentAt: now.Add(-2 * time.Minute)})
		_ = l.Record(Entry{RequestID: 3, Target: "t-0001", SentAt: now.Add(-5 * time.Second)})
		_ = l.Update(3, model.StateDone)

		pending := l.Pending(now, time.Minute)
		if len(pending) != 1 || pending[0].RequestID != 1 {
			t.Errorf("Pending() = %v, want only request 1", pending)
		}
		if got := l.Pending(now, 0); len(got) != 2 {
			t.Errorf("Pending() without timeout len = %d, want 2", len(got))
		}
	})

	t.Run("Prune", func(t *testing.T) {
		l, _ := OpenLedger(filepath.Join(t.TempDir(), "ledger.json"), "controller")
		_ = l.Record(Entry{RequestID: 1, Target: "t-0001"})
		_ = l.Record(Entry{RequestID: 2, Target: "t-0001"})
		_ = l.Update(1, model.StateDone)

		n, err := l.Prune(time.Now().Add(time.Second))
		if err != nil {
			t.Fatalf("Prune() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Prune() = %d, want 1", n)
		}
		if _, ok := l.Get(1); ok {
			t.Error("request 1 still present after prune")
		}
		if _, ok := l.Get(2); !ok {
			t.Error("request 2 pruned while still pending")
		}
	})

	t.Run("WrongOwner", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.json")
		l, _ := OpenLedger(path, "controller")
		_ = l.Record(Entry{RequestID: 1, Target: "t-0001"})

		if _, err := OpenLedger(path, "someone-else"); err == nil {
			t.Error("OpenLedger() for another thing succeeded")
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.json")
		if err := os.WriteFile(path, []byte("{nope"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := OpenLedger(path, "controller"); err == nil {
			t.Error("OpenLedger() on corrupt file succeeded")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.json")
		l, _ := OpenLedger(path, "controller")
		_ = l.Record(Entry{RequestID: 1, Target: "t-0001"})
		if err := l.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := l.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
		if len(l.Entries()) != 0 {
			t.Error("entries survived Clear()")
		}
	})
}
