package model

import (
	"strconv"
)

// Action request states defined by the framework. Any other string is a
// valid intermediate state.
const (
	StateRequested = "Requested"
	StateDone      = "Done"

	// StateTimedOut is delivered to a sender only when timeout
	// notification is enabled. It is never written to the store.
	StateTimedOut = "TimedOut"
)

// ActionReq is an action request stored in the target Thing's record.
type ActionReq struct {
	ThingID string   `json:"thing_id"`
	Action  string   `json:"action"`
	Args    []string `json:"args"`
	State   string   `json:"state"`
}

// IsTerminal reports whether the request reached Done.
func (r ActionReq) IsTerminal() bool {
	return r.State == StateDone
}

// RequestID identifies an action request. It is derived from a
// nanosecond timestamp and unique within the issuing process.
type RequestID uint64

// String renders the id in decimal, as used in store keys.
func (id RequestID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseRequestID parses a decimal request id.
func ParseRequestID(s string) (RequestID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return RequestID(v), nil
}
