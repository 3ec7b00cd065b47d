package model

import (
	"encoding/json"
	"testing"
)

func TestSetAttr(t *testing.T) {
	attrs := []ThingAttr{
		{Name: "firmware", Value: "1.0", IsDynamic: false},
		{Name: "moisture", Value: "40", IsDynamic: true},
	}

	t.Run("UpdateExisting", func(t *testing.T) {
		got := SetAttr(attrs, "moisture", "55")
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		a, ok := FindAttr(got, "moisture")
		if !ok || a.Value != "55" {
			t.Errorf("moisture = %+v, want value 55", a)
		}
		if !a.IsDynamic {
			t.Error("moisture lost dynamic flag")
		}
	})

	t.Run("InsertMissing", func(t *testing.T) {
		got := SetAttr(attrs, "battery", "90")
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		a, ok := FindAttr(got, "battery")
		if !ok || a.Value != "90" || !a.IsDynamic {
			t.Errorf("battery = %+v", a)
		}
	})

	t.Run("SingleEntryPerName", func(t *testing.T) {
		got := SetAttr(attrs, "moisture", "1")
		got = SetAttr(got, "moisture", "2")
		count := 0
		for _, a := range got {
			if a.Name == "moisture" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("moisture entries = %d, want 1", count)
		}
	})
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"Connected", StatusConnected},
		{"Published", StatusPublished},
		{"Disabled", StatusDisabled},
		{"", StatusUnknown},
		{"garbage", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if StatusPublished.String() != "Published" {
		t.Errorf("String() = %q", StatusPublished.String())
	}
}

func TestAccessTypeJSON(t *testing.T) {
	topic := Topic{Name: "irrigation", Access: AccessGroup}
	s, err := Encode([]Topic{topic})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if s != `[{"name":"irrigation","access":"Group"}]` {
		t.Errorf("Encode = %s", s)
	}

	got, err := Decode[[]Topic](s)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 1 || got[0] != topic {
		t.Errorf("Decode = %+v", got)
	}

	var bad AccessType
	if err := json.Unmarshal([]byte(`"nobody"`), &bad); err == nil {
		t.Error("expected error for unknown access type")
	}
}

func TestEventJSON(t *testing.T) {
	events := []Event{{Timestamp: 1700000000000000001, Payload: "wet"}}
	s, err := Encode(events)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if s != `[[1700000000000000001,"wet"]]` {
		t.Errorf("Encode = %s", s)
	}

	got, err := Decode[[]Event](s)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got[0] != events[0] {
		t.Errorf("Decode = %+v, want %+v", got[0], events[0])
	}

	if _, err := Decode[[]Event](`[[1]]`); err == nil {
		t.Error("expected error for short event tuple")
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode[[]ThingAttr]("")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != nil {
		t.Errorf("Decode(\"\") = %v, want nil", got)
	}
}

func TestNowMonotonic(t *testing.T) {
	prev := Now()
	for i := 0; i < 1000; i++ {
		next := Now()
		if next <= prev {
			t.Fatalf("Now() = %d after %d", next, prev)
		}
		prev = next
	}
}

func TestRequestID(t *testing.T) {
	id := RequestID(1700000000123456789)
	if id.String() != "1700000000123456789" {
		t.Errorf("String() = %s", id.String())
	}
	parsed, err := ParseRequestID(id.String())
	if err != nil || parsed != id {
		t.Errorf("ParseRequestID = %d, %v", parsed, err)
	}
	if _, err := ParseRequestID("abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
