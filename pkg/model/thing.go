package model

// Topic is a named event channel a Thing emits to.
type Topic struct {
	Name   string     `json:"name" yaml:"name"`
	Access AccessType `json:"access" yaml:"access"`
}

// ActionDef is an action a Thing can perform on request.
// Params are named but carry string values only.
type ActionDef struct {
	Name   string     `json:"name" yaml:"name"`
	Access AccessType `json:"access" yaml:"access"`
	Params []string   `json:"params" yaml:"params"`
}

// Status is the lifecycle status of a Thing in the store.
type Status uint8

const (
	// StatusUnknown indicates a missing or unrecognised status.
	StatusUnknown Status = iota

	// StatusConnected indicates the Thing registered its record.
	StatusConnected

	// StatusPublished indicates the Thing is visible to others.
	StatusPublished

	// StatusDisabled indicates the Thing stopped serving requests.
	StatusDisabled
)

// String returns the status as stored in the Thing record.
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "Connected"
	case StatusPublished:
		return "Published"
	case StatusDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// ParseStatus maps a stored status string to a Status.
// Unrecognised strings map to StatusUnknown.
func ParseStatus(s string) Status {
	switch s {
	case "Connected":
		return StatusConnected
	case "Published":
		return StatusPublished
	case "Disabled":
		return StatusDisabled
	default:
		return StatusUnknown
	}
}
