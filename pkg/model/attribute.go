package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MinThingIDLen is the minimum length of a ThingID in bytes.
const MinThingIDLen = 5

// AccessType is the visibility scope of a topic or action.
type AccessType uint8

const (
	// AccessThing restricts access to the Thing itself.
	AccessThing AccessType = iota

	// AccessOwner allows the Thing's owner.
	AccessOwner

	// AccessGroup allows members of the owner's group.
	AccessGroup

	// AccessAll allows everyone.
	AccessAll
)

// String returns the access scope name.
func (a AccessType) String() string {
	switch a {
	case AccessThing:
		return "Thing"
	case AccessOwner:
		return "Owner"
	case AccessGroup:
		return "Group"
	case AccessAll:
		return "All"
	default:
		return fmt.Sprintf("AccessType(%d)", a)
	}
}

// ParseAccessType parses a scope name (case insensitive).
func ParseAccessType(s string) (AccessType, error) {
	switch strings.ToLower(s) {
	case "thing":
		return AccessThing, nil
	case "owner":
		return AccessOwner, nil
	case "group":
		return AccessGroup, nil
	case "all":
		return AccessAll, nil
	default:
		return 0, fmt.Errorf("unknown access type %q", s)
	}
}

// MarshalJSON encodes the scope by name.
func (a AccessType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a scope name.
func (a *AccessType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseAccessType(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalYAML encodes the scope by name.
func (a AccessType) MarshalYAML() (any, error) {
	return a.String(), nil
}

// UnmarshalYAML decodes a scope name.
func (a *AccessType) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseAccessType(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ThingAttr is a named attribute of a Thing.
type ThingAttr struct {
	Name      string `json:"name" yaml:"name"`
	Value     string `json:"value" yaml:"value"`
	IsDynamic bool   `json:"is_dynamic" yaml:"dynamic"`
}

// FindAttr returns the attribute with the given name.
func FindAttr(attrs []ThingAttr, name string) (ThingAttr, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return ThingAttr{}, false
}

// SetAttr updates the value of the named attribute, or appends a new
// dynamic attribute if no entry with that name exists.
func SetAttr(attrs []ThingAttr, name, value string) []ThingAttr {
	for i := range attrs {
		if attrs[i].Name == name {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, ThingAttr{Name: name, Value: value, IsDynamic: true})
}
