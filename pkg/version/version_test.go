package version

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    FormatVersion
		wantErr bool
	}{
		{in: "1.0", want: FormatVersion{1, 0}},
		{in: "2.13", want: FormatVersion{2, 13}},
		{in: "1", wantErr: true},
		{in: "1.", wantErr: true},
		{in: ".1", wantErr: true},
		{in: "a.b", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "70000.0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestCompatible(t *testing.T) {
	v := FormatVersion{Major: 1, Minor: 2}
	if !v.Compatible(FormatVersion{1, 0}) || !v.Compatible(FormatVersion{1, 2}) {
		t.Error("older or equal minor should be compatible")
	}
	if v.Compatible(FormatVersion{1, 3}) {
		t.Error("newer minor should not be compatible")
	}
	if v.Compatible(FormatVersion{2, 0}) {
		t.Error("different major should not be compatible")
	}
}

func TestCurrent(t *testing.T) {
	if Current().String() != Format {
		t.Errorf("Current() = %v, want %s", Current(), Format)
	}
	if !strings.Contains(Info(), "record format "+Format) {
		t.Errorf("Info() = %q", Info())
	}
}
