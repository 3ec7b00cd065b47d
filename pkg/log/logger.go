package log

// Logger receives protocol events. Log is called from every polling loop
// of a Thing, so implementations must be safe for concurrent use and
// should return quickly: a slow Log delays the loop's next tick.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// MultiLogger sends each event to several loggers in order, for example a
// SlogAdapter for the console plus a FileLogger for thingctl log.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers, skipping nil entries.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{loggers: make([]Logger, 0, len(loggers))}
	for _, l := range loggers {
		if l == nil {
			continue
		}
		m.loggers = append(m.loggers, l)
	}
	return m
}

func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*SlogAdapter)(nil)
)
