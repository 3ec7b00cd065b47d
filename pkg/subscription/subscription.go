package subscription

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/safething/safething-go/pkg/filter"
	"github.com/safething/safething-go/pkg/model"
)

// Kind distinguishes topic and attribute subscriptions.
type Kind uint8

const (
	// KindTopic watches a remote topic's event log.
	KindTopic Kind = iota

	// KindAttr watches a remote dynamic attribute.
	KindAttr
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTopic:
		return "topic"
	case KindAttr:
		return "attr"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "topic":
		*k = KindTopic
	case "attr":
		*k = KindAttr
	default:
		return fmt.Errorf("unknown subscription kind %q", s)
	}
	return nil
}

// Subscription is one watch on a remote Thing.
type Subscription struct {
	Kind Kind `json:"kind"`

	// Name is the topic or attribute name.
	Name string `json:"name"`

	Filter filter.Filter `json:"filter"`

	// LastReportTimestamp is the topic watermark. Monotonic non-decreasing.
	LastReportTimestamp uint64 `json:"last_report_timestamp,omitempty"`

	// LastValueReported is the attribute watermark. "" means no value
	// has been reported yet.
	LastValueReported string `json:"last_value_reported,omitempty"`
}

// NewTopic creates a topic subscription watermarked at the current time.
func NewTopic(topic string, f filter.Filter) *Subscription {
	return &Subscription{
		Kind:                KindTopic,
		Name:                topic,
		Filter:              f,
		LastReportTimestamp: model.Now(),
	}
}

// NewAttr creates an attribute subscription with no reported value.
func NewAttr(attr string, f filter.Filter) *Subscription {
	return &Subscription{
		Kind:   KindAttr,
		Name:   attr,
		Filter: f,
	}
}

// PendingEvents returns the events after the watermark in ascending
// timestamp order. Events with equal timestamps keep log order.
func (s *Subscription) PendingEvents(events []model.Event) []model.Event {
	var out []model.Event
	for _, e := range events {
		if e.Timestamp > s.LastReportTimestamp {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return out
}

// AttrEligible reports whether attr should be delivered.
func (s *Subscription) AttrEligible(attr model.ThingAttr) (bool, error) {
	if !attr.IsDynamic || attr.Value == s.LastValueReported {
		return false, nil
	}
	return s.Filter.Match(attr.Value)
}

// Registered maps a remote Thing id to the subscriptions on it.
type Registered map[string][]*Subscription

// Clone returns a deep copy.
func (r Registered) Clone() Registered {
	out := make(Registered, len(r))
	for id, subs := range r {
		cp := make([]*Subscription, len(subs))
		for i, s := range subs {
			v := *s
			cp[i] = &v
		}
		out[id] = cp
	}
	return out
}

// Find returns the subscription of the given kind and name on thingID, or
// nil.
func (r Registered) Find(thingID string, kind Kind, name string) *Subscription {
	for _, s := range r[thingID] {
		if s != nil && s.Kind == kind && s.Name == name {
			return s
		}
	}
	return nil
}

// Len returns the total number of subscriptions.
func (r Registered) Len() int {
	n := 0
	for _, subs := range r {
		n += len(subs)
	}
	return n
}

// ParseRegistered decodes a persisted subscription map. "" and "{}"
// decode to an empty map.
func ParseRegistered(s string) (Registered, error) {
	r, err := model.Decode[Registered](s)
	if err != nil {
		return nil, fmt.Errorf("parse subscriptions: %w", err)
	}
	if r == nil {
		r = make(Registered)
	}
	return r, nil
}
