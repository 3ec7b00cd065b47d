package logcmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/safething/safething-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	OpsByType         map[log.OpType]int
	Sessions          map[string]*SessionStats
	Notifications     int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for one store session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	ThingID   string
	Layer     log.Layer
	OpTime    time.Duration
	Ops       int
}

// Collect reads every event of the file at path.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		OpsByType:         make(map[log.OpType]int),
		Sessions:          make(map[string]*SessionStats),
	}
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			ThingID:   event.ThingID,
			Layer:     event.Layer,
		}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}

	switch {
	case event.Operation != nil:
		s.OpsByType[event.Operation.Op]++
		sess.Ops++
		sess.OpTime += event.Operation.Duration
	case event.Notification != nil:
		s.Notifications++
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats prints statistics about the file at path.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Thing Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerStore, log.LayerSubscription, log.LayerAction, log.LayerThing} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryOperation, log.CategoryNotification, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.OpsByType) > 0 {
		fmt.Fprintln(w, "Store Operations:")
		for _, op := range []log.OpType{log.OpPutRecord, log.OpGet, log.OpSet, log.OpList} {
			if count := stats.OpsByType[op]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", op.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s %d events, duration %s\n",
				shortenID(s.id), s.stats.Layer.String(), s.stats.Events, duration)
			if s.stats.ThingID != "" {
				fmt.Fprintf(w, "           Thing: %s\n", s.stats.ThingID)
			}
			if s.stats.Ops > 0 {
				avg := s.stats.OpTime / time.Duration(s.stats.Ops)
				fmt.Fprintf(w, "           Ops: %d (avg %s)\n", s.stats.Ops, formatDuration(avg))
			}
		}
	}

	if stats.Notifications > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Notifications: %d\n", stats.Notifications)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
