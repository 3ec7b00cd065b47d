// Package version reports the build version and the record format version.
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Version is the build version. Release builds set it with
//
//	-ldflags "-X github.com/safething/safething-go/pkg/version.Version=v1.2.0"
var Version = "dev"

// Format is the version of the record layout written to the store: the
// _safe_thing_* keys and their JSON encodings.
const Format = "1.0"

// FormatVersion is a parsed "major.minor" record format version.
type FormatVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (FormatVersion, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok || major == "" || minor == "" {
		return FormatVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}
	maj, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return FormatVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}
	mn, err := strconv.ParseUint(minor, 10, 16)
	if err != nil {
		return FormatVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}
	return FormatVersion{Major: uint16(maj), Minor: uint16(mn)}, nil
}

// String returns the version as "major.minor".
func (v FormatVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible reports whether records written in format other can be read
// by this build: same major, minor not newer.
func (v FormatVersion) Compatible(other FormatVersion) bool {
	return v.Major == other.Major && other.Minor <= v.Minor
}

// Current returns the parsed Format.
func Current() FormatVersion {
	v, _ := Parse(Format)
	return v
}

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("thingctl %s (record format %s, %s)", Version, Format, runtime.Version())
}
