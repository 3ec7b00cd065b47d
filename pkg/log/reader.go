package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events from a capture. Zero-valued criteria are ignored.
type Filter struct {
	SessionID string
	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart and TimeEnd bound the event timestamp, both inclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// ThingID matches either the local or the remote Thing of an event.
	ThingID string

	// Key is a field key prefix; only operation events carry keys.
	Key string
}

// Match reports whether event satisfies every criterion of f.
func (f Filter) Match(event Event) bool {
	switch {
	case f.SessionID != "" && event.SessionID != f.SessionID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && event.Timestamp.After(*f.TimeEnd):
		return false
	case f.ThingID != "" && f.ThingID != event.ThingID && f.ThingID != event.RemoteThingID:
		return false
	case f.Key != "":
		return event.Operation != nil && strings.HasPrefix(event.Operation.Key, f.Key)
	}
	return true
}

// Reader streams events from a .tlog capture.
type Reader struct {
	file   *os.File
	dec    *cbor.Decoder
	filter Filter
	read   int
}

// NewReader opens path for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path for reading the events that match filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, dec: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
// A capture cut off in the middle of an event, as left by a crashed
// writer, also ends with io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.dec.Decode(&event)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, fmt.Errorf("event %d: %w", r.read+1, err)
		}
		r.read++
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Close closes the capture file.
func (r *Reader) Close() error {
	return r.file.Close()
}
