package log

import (
	"time"
)

// Event is a protocol log event captured by one of the Thing runtime layers.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the store handle that produced the event (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction is In for reads from the store and Out for writes.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// ThingID is the local Thing.
	ThingID string `cbor:"6,keyasint,omitempty"`

	// RemoteThingID is the Thing whose record was accessed, if not local.
	RemoteThingID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Operation    *OperationEvent    `cbor:"10,keyasint,omitempty"` // Store access
	Notification *NotificationEvent `cbor:"11,keyasint,omitempty"` // Delivered subscription change
	StateChange  *StateChangeEvent  `cbor:"12,keyasint,omitempty"` // Thing, request or loop state
	Error        *ErrorEventData    `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow relative to the store.
type Direction uint8

const (
	// DirectionIn indicates data read from the store.
	DirectionIn Direction = 0
	// DirectionOut indicates data written to the store.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which runtime layer captured the event.
type Layer uint8

const (
	// LayerStore is the entity store adapter.
	LayerStore Layer = 0
	// LayerSubscription is the subscription manager.
	LayerSubscription Layer = 1
	// LayerAction is the action request engine.
	LayerAction Layer = 2
	// LayerThing is the Thing facade.
	LayerThing Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerStore:
		return "STORE"
	case LayerSubscription:
		return "SUBSCRIPTION"
	case LayerAction:
		return "ACTION"
	case LayerThing:
		return "THING"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryOperation indicates a store operation.
	CategoryOperation Category = 0
	// CategoryNotification indicates a delivered notification.
	CategoryNotification Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryOperation:
		return "OPERATION"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// OperationEvent captures a single store operation.
type OperationEvent struct {
	// Op is the store operation performed.
	Op OpType `cbor:"1,keyasint"`

	// Key is the record field (empty for record-level operations).
	Key string `cbor:"2,keyasint,omitempty"`

	// Size is the value size in bytes.
	Size int `cbor:"3,keyasint,omitempty"`

	// NotFound indicates the field did not exist and a default was used.
	NotFound bool `cbor:"4,keyasint,omitempty"`

	// Duration is the round-trip time of the operation.
	Duration time.Duration `cbor:"5,keyasint,omitempty"`
}

// OpType is a store operation.
type OpType uint8

const (
	// OpPutRecord creates the Thing record.
	OpPutRecord OpType = 0
	// OpGet reads a field.
	OpGet OpType = 1
	// OpSet writes a field.
	OpSet OpType = 2
	// OpList lists all fields of a record.
	OpList OpType = 3
)

// String returns the operation name.
func (o OpType) String() string {
	switch o {
	case OpPutRecord:
		return "PUT_RECORD"
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpList:
		return "LIST"
	default:
		return "UNKNOWN"
	}
}

// NotificationEvent captures a change delivered to a subscriber.
type NotificationEvent struct {
	// Kind distinguishes topic events from attribute changes.
	Kind NotificationKind `cbor:"1,keyasint"`

	// Name is the topic or attribute name.
	Name string `cbor:"2,keyasint"`

	// Payload is the event payload or attribute value.
	Payload string `cbor:"3,keyasint,omitempty"`

	// EventTimestamp is the event's own timestamp (0 for attributes).
	EventTimestamp uint64 `cbor:"4,keyasint,omitempty"`
}

// NotificationKind distinguishes topic and attribute notifications.
type NotificationKind uint8

const (
	// NotificationTopic is a topic event.
	NotificationTopic NotificationKind = 0
	// NotificationAttr is a dynamic attribute change.
	NotificationAttr NotificationKind = 1
)

// String returns the kind name.
func (k NotificationKind) String() string {
	switch k {
	case NotificationTopic:
		return "TOPIC"
	case NotificationAttr:
		return "ATTR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures lifecycle changes of Things, action requests
// and polling loops.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// ID identifies the entity instance (request id, loop name).
	ID string `cbor:"2,keyasint,omitempty"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"3,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"4,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityThing indicates a Thing status change.
	StateEntityThing StateEntity = 0
	// StateEntityRequest indicates an action request state change.
	StateEntityRequest StateEntity = 1
	// StateEntityLoop indicates a polling loop started or stopped.
	StateEntityLoop StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityThing:
		return "THING"
	case StateEntityRequest:
		return "REQUEST"
	case StateEntityLoop:
		return "LOOP"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
