package model

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Event is a single entry in a topic's event log.
// It encodes as a two element array: [timestamp, payload].
type Event struct {
	// Timestamp is nanoseconds since the Unix epoch.
	Timestamp uint64

	// Payload is the opaque event data.
	Payload string
}

// MarshalJSON encodes the event as [timestamp, payload].
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Timestamp, e.Payload})
}

// UnmarshalJSON decodes an event from [timestamp, payload].
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("event: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Timestamp); err != nil {
		return fmt.Errorf("event timestamp: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Payload); err != nil {
		return fmt.Errorf("event payload: %w", err)
	}
	return nil
}

var lastNow atomic.Uint64

// Now returns the current time in nanoseconds since the Unix epoch.
// Successive calls within a process return strictly increasing values.
func Now() uint64 {
	for {
		now := uint64(time.Now().UnixNano())
		last := lastNow.Load()
		if now <= last {
			now = last + 1
		}
		if lastNow.CompareAndSwap(last, now) {
			return now
		}
	}
}
