package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/safething/safething-go/pkg/model"
)

// Profile describes what a Thing registers: its attributes, topics and
// actions.
//
//	attributes:
//	  - name: model
//	    value: GX-200
//	  - name: moisture
//	    value: "40"
//	    dynamic: true
//	topics:
//	  - name: low_moisture
//	    access: all
//	actions:
//	  - name: water
//	    access: owner
//	    params: [seconds]
type Profile struct {
	Attributes []model.ThingAttr `yaml:"attributes"`
	Topics     []model.Topic     `yaml:"topics"`
	Actions    []model.ActionDef `yaml:"actions"`
}

// LoadProfile reads a profile file. An empty path yields an empty profile.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return Profile{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(b)
}

// ParseProfile decodes and checks a YAML profile.
func ParseProfile(b []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) validate() error {
	seen := make(map[string]bool)
	for _, a := range p.Attributes {
		if a.Name == "" {
			return errors.New("profile: attribute without name")
		}
		if seen[a.Name] {
			return fmt.Errorf("profile: duplicate attribute %q", a.Name)
		}
		seen[a.Name] = true
	}
	clear(seen)
	for _, t := range p.Topics {
		if t.Name == "" {
			return errors.New("profile: topic without name")
		}
		if seen[t.Name] {
			return fmt.Errorf("profile: duplicate topic %q", t.Name)
		}
		seen[t.Name] = true
	}
	clear(seen)
	for _, a := range p.Actions {
		if a.Name == "" {
			return errors.New("profile: action without name")
		}
		if seen[a.Name] {
			return fmt.Errorf("profile: duplicate action %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}
