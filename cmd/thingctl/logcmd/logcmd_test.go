package logcmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/safething/safething-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

var ts = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: ts, SessionID: "aaaaaaaa-1111", Direction: log.DirectionOut,
			Layer: log.LayerStore, Category: log.CategoryOperation, ThingID: "garden-01",
			Operation: &log.OperationEvent{Op: log.OpSet, Key: "_safe_thing_attributes", Size: 42, Duration: 2 * time.Millisecond},
		},
		{
			Timestamp: ts.Add(time.Second), SessionID: "bbbbbbbb-2222", Direction: log.DirectionIn,
			Layer: log.LayerSubscription, Category: log.CategoryNotification, ThingID: "controller-01",
			RemoteThingID: "garden-01",
			Notification:  &log.NotificationEvent{Kind: log.NotificationTopic, Name: "low_moisture", Payload: "12", EventTimestamp: 77},
		},
		{
			Timestamp: ts.Add(2 * time.Second), SessionID: "bbbbbbbb-2222", Direction: log.DirectionIn,
			Layer: log.LayerAction, Category: log.CategoryState, ThingID: "garden-01",
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityRequest, ID: "123", OldState: "Requested", NewState: "Done"},
		},
		{
			Timestamp: ts.Add(3 * time.Second), SessionID: "aaaaaaaa-1111", Direction: log.DirectionIn,
			Layer: log.LayerStore, Category: log.CategoryError, ThingID: "garden-01",
			Error: &log.ErrorEventData{Layer: log.LayerStore, Message: "network error", Context: "get _safe_thing_status"},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, Options{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:00.000000Z [session:aaaaaaaa] OUT STORE SET thing=garden-01",
		"Key: _safe_thing_attributes",
		"Duration: 2.000ms",
		"SUBSCRIPTION Notify thing=controller-01",
		"remote=garden-01",
		"TOPIC low_moisture",
		"Payload: 12",
		"Requested -> Done",
		"Message: network error",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, Options{Layer: "store", Direction: "out"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "STORE SET") {
		t.Errorf("expected SET event in output:\n%s", out)
	}
	if strings.Contains(out, "network error") {
		t.Error("inbound error should be filtered out")
	}

	buf.Reset()
	if err := RunView(path, Options{ThingID: "controller-01"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if got := strings.Count(buf.String(), "[session:"); got != 1 {
		t.Errorf("expected 1 event for controller-01, got %d", got)
	}
}

func TestParseFlags(t *testing.T) {
	if _, err := ParseLayer("Subscription"); err != nil {
		t.Errorf("ParseLayer: %v", err)
	}
	if _, err := ParseLayer("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if c, err := ParseCategory("NOTIFICATION"); err != nil || c != log.CategoryNotification {
		t.Errorf("ParseCategory = %v, %v", c, err)
	}
	if _, err := (Options{TimeStart: "yesterday"}).Filter(); err == nil {
		t.Error("expected error for bad time-start")
	}
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := Collect(path)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", stats.TotalEvents)
	}
	if len(stats.Sessions) != 2 {
		t.Errorf("Sessions = %d, want 2", len(stats.Sessions))
	}
	if stats.OpsByType[log.OpSet] != 1 {
		t.Errorf("SET ops = %d, want 1", stats.OpsByType[log.OpSet])
	}
	if stats.Notifications != 1 || stats.Errors != 1 {
		t.Errorf("notifications=%d errors=%d", stats.Notifications, stats.Errors)
	}
	if got := stats.TimeRange.End.Sub(stats.TimeRange.Start); got != 3*time.Second {
		t.Errorf("time range = %s, want 3s", got)
	}

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Total Events: 4", "STORE:", "SUBSCRIPTION:", "Sessions: 2", "[aaaaaaaa]", "Errors: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "jsonl", Options{Category: "state"}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var event log.Event
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if event.StateChange == nil || event.StateChange.NewState != "Done" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "csv", Options{}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
	if rows[1][7] != "SET" || rows[1][8] != "_safe_thing_attributes" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[3][8] != "123:Done" {
		t.Errorf("unexpected state row: %v", rows[3])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	if err := RunExport(path, "xml", Options{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFilterWritesSubset(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	output := filepath.Join(t.TempDir(), "filtered.tlog")

	n, err := RunFilter(path, output, Options{SessionID: "bbbbbbbb-2222"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("filtered %d events, want 2", n)
	}

	stats, err := Collect(output)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 2 || len(stats.Sessions) != 1 {
		t.Errorf("filtered file has %d events in %d sessions", stats.TotalEvents, len(stats.Sessions))
	}
}

func TestMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.tlog")
	if err := RunView(missing, Options{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Collect(missing); err == nil {
		t.Error("expected error for missing file")
	}
}
