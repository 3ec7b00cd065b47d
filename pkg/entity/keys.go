package entity

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/safething/safething-go/pkg/model"
)

// TypeTag is the record type tag of Thing records.
const TypeTag uint64 = 27417

// Record field keys.
const (
	KeyStatus          = "_safe_thing_status"
	KeyAttributes      = "_safe_thing_attributes"
	KeyTopics          = "_safe_thing_topics"
	KeyActions         = "_safe_thing_actions"
	KeySubscriptions   = "_safe_thing_subscriptions"
	KeyEventsPrefix    = "_safe_thing_events_"
	KeyActionReqPrefix = "_safe_thing_action_req_"
)

// Defaults substituted when a field does not exist.
const (
	emptyList = "[]"
	emptyMap  = "{}"
)

// Address derives the record address of a Thing: the hex encoded
// SHA3-256 digest of its id.
func Address(thingID string) string {
	sum := sha3.Sum256([]byte(thingID))
	return hex.EncodeToString(sum[:])
}

// EventsKey returns the field key of a topic's event log.
func EventsKey(topic string) string {
	return KeyEventsPrefix + topic
}

// ActionReqKey returns the field key of an action request.
func ActionReqKey(id model.RequestID) string {
	return KeyActionReqPrefix + id.String()
}

// ParseActionReqKey extracts the request id from an action request key.
func ParseActionReqKey(key string) (model.RequestID, bool) {
	s, ok := strings.CutPrefix(key, KeyActionReqPrefix)
	if !ok {
		return 0, false
	}
	id, err := model.ParseRequestID(s)
	if err != nil {
		return 0, false
	}
	return id, true
}
