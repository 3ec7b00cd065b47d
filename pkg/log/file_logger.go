package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a .tlog capture, one CBOR item per event.
// One FileLogger may be shared by all loops of a Thing. Restarting a Thing
// with the same path continues the capture.
type FileLogger struct {
	mu      sync.Mutex
	f       *os.File
	enc     *cbor.Encoder
	written int
	dropped int
}

// NewFileLogger opens path in append mode, creating the file if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open protocol log: %w", err)
	}
	return &FileLogger{f: f, enc: NewEncoder(f)}, nil
}

// Log appends event. Events logged after Close are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	if err := l.enc.Encode(event); err != nil {
		l.dropped++
		return
	}
	l.written++
}

// Written returns how many events were appended.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Dropped returns how many events could not be encoded or written.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the file. Further calls are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f, l.enc = nil, nil
	return err
}
