package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/safething/safething-go/pkg/model"
)

// LedgerVersion is the current version of the ledger file format.
const LedgerVersion = 1

// ErrUnknownRequest is returned when updating a request the ledger never saw.
var ErrUnknownRequest = errors.New("unknown request")

// Entry is one sent action request.
type Entry struct {
	RequestID model.RequestID `json:"request_id"`

	// Target is the Thing the request was written to.
	Target string `json:"target"`

	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`

	// State is the last state observed by the monitor.
	State string `json:"state"`

	SentAt    time.Time `json:"sent_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the entry was sent longer than timeout before now.
func (e Entry) Expired(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(e.SentAt) > timeout
}

// LedgerState is the on-disk representation.
type LedgerState struct {
	// Version is the ledger file format version.
	Version int `json:"version"`

	// SavedAt is when the ledger was last saved.
	SavedAt time.Time `json:"saved_at"`

	// ThingID is the local Thing that sent the requests.
	ThingID string `json:"thing_id,omitempty"`

	Requests []Entry `json:"requests,omitempty"`
}

// Ledger tracks outbound action requests in a JSON file.
type Ledger struct {
	mu      sync.Mutex
	path    string
	thingID string
	entries map[model.RequestID]*Entry
}

// OpenLedger loads the ledger at path, or starts an empty one if the file
// does not exist.
func OpenLedger(path, thingID string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		thingID: thingID,
		entries: make(map[model.RequestID]*Entry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}

	var state LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}
	if state.Version > LedgerVersion {
		return nil, fmt.Errorf("ledger %s: unsupported version %d", path, state.Version)
	}
	if state.ThingID != "" && thingID != "" && state.ThingID != thingID {
		return nil, fmt.Errorf("ledger %s belongs to %q, not %q", path, state.ThingID, thingID)
	}
	for i := range state.Requests {
		e := state.Requests[i]
		l.entries[e.RequestID] = &e
	}
	return l, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record adds a newly sent request and saves the ledger.
func (l *Ledger) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e.SentAt.IsZero() {
		e.SentAt = now
	}
	if e.State == "" {
		e.State = model.StateRequested
	}
	e.UpdatedAt = now
	l.entries[e.RequestID] = &e
	return l.saveLocked()
}

// Update records a state observed for id and saves the ledger.
func (l *Ledger) Update(id model.RequestID, state string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	if e.State == state {
		return nil
	}
	e.State = state
	e.UpdatedAt = time.Now()
	return l.saveLocked()
}

// Get returns the entry for id.
func (l *Ledger) Get(id model.RequestID) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns all entries ordered by request id.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked(func(Entry) bool { return true })
}

// Pending returns the entries that are neither Done nor timed out as of now.
func (l *Ledger) Pending(now time.Time, timeout time.Duration) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked(func(e Entry) bool {
		return e.State != model.StateDone && e.State != model.StateTimedOut && !e.Expired(now, timeout)
	})
}

// Prune drops Done and timed-out entries last updated before cutoff and
// returns how many were removed.
func (l *Ledger) Prune(cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, e := range l.entries {
		finished := e.State == model.StateDone || e.State == model.StateTimedOut
		if finished && e.UpdatedAt.Before(cutoff) {
			delete(l.entries, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, l.saveLocked()
}

func (l *Ledger) sortedLocked(keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if keep(*e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}

// saveLocked writes a temporary file and renames it over the ledger.
// Must be called with l.mu held.
func (l *Ledger) saveLocked() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state := LedgerState{
		Version:  LedgerVersion,
		SavedAt:  time.Now(),
		ThingID:  l.thingID,
		Requests: l.sortedLocked(func(Entry) bool { return true }),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// Clear removes the ledger file and forgets all entries.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[model.RequestID]*Entry)
	err := os.Remove(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
