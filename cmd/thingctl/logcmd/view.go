// Package logcmd implements the thingctl log subcommands that read
// protocol capture files written with --protocol-log.
package logcmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/safething/safething-go/pkg/log"
)

// Options selects events for view, export and filter. Empty fields match
// every event.
type Options struct {
	SessionID string
	ThingID   string
	Key       string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Filter converts the options to a log.Filter.
func (o Options) Filter() (log.Filter, error) {
	f := log.Filter{
		SessionID: o.SessionID,
		ThingID:   o.ThingID,
		Key:       o.Key,
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return f, fmt.Errorf("invalid time-start format: %w", err)
		}
		f.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return f, fmt.Errorf("invalid time-end format: %w", err)
		}
		f.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayer(o.Layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirection(o.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategory(o.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	return f, nil
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "store":
		return log.LayerStore, nil
	case "subscription":
		return log.LayerSubscription, nil
	case "action":
		return log.LayerAction, nil
	case "thing":
		return log.LayerThing, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be store, subscription, action or thing)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "operation":
		return log.CategoryOperation, nil
	case "notification":
		return log.CategoryNotification, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be operation, notification, state or error)", s)
	}
}

// RunView prints the matching events of the file at path.
func RunView(path string, opts Options, w io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes one event as a header line plus indented details.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [session:%s] %-3s %s %s", ts, shortenID(event.SessionID),
		event.Direction.String(), event.Layer.String(), typeLabel(event))
	if event.ThingID != "" {
		fmt.Fprintf(w, " thing=%s", event.ThingID)
	}
	if event.RemoteThingID != "" && event.RemoteThingID != event.ThingID {
		fmt.Fprintf(w, " remote=%s", event.RemoteThingID)
	}
	fmt.Fprintln(w)

	switch {
	case event.Operation != nil:
		formatOperation(w, event.Operation)
	case event.Notification != nil:
		formatNotification(w, event.Notification)
	case event.StateChange != nil:
		formatStateChange(w, event.StateChange)
	case event.Error != nil:
		formatError(w, event.Error)
	}
	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.Operation != nil:
		return event.Operation.Op.String()
	case event.Notification != nil:
		return "Notify"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatOperation(w io.Writer, op *log.OperationEvent) {
	if op.Key != "" {
		fmt.Fprintf(w, "  Key: %s\n", op.Key)
	}
	if op.Size > 0 {
		fmt.Fprintf(w, "  Size: %d bytes\n", op.Size)
	}
	if op.NotFound {
		fmt.Fprintln(w, "  Not found (default used)")
	}
	if op.Duration > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(op.Duration))
	}
}

func formatNotification(w io.Writer, n *log.NotificationEvent) {
	fmt.Fprintf(w, "  %s %s\n", n.Kind.String(), n.Name)
	if n.EventTimestamp != 0 {
		fmt.Fprintf(w, "  Timestamp: %d\n", n.EventTimestamp)
	}
	if n.Payload != "" {
		fmt.Fprintf(w, "  Payload: %s\n", n.Payload)
	}
}

func formatStateChange(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s", sc.Entity.String())
	if sc.ID != "" {
		fmt.Fprintf(w, " %s", sc.ID)
	}
	fmt.Fprintln(w)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatError(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", e.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
