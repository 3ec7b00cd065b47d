package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/safething/safething-go/pkg/connection"
	"github.com/safething/safething-go/pkg/store"
	"github.com/safething/safething-go/pkg/store/natskv"
	"github.com/safething/safething-go/pkg/store/sqlite"
	"github.com/safething/safething-go/pkg/thing"
)

// NewLogger builds the operational logger described by the logging section.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Logging.Level)}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenNetwork returns the store network for the configured backend.
func OpenNetwork(cfg Config, logger *slog.Logger) (store.Network, error) {
	switch cfg.Store.Backend {
	case BackendMemory:
		return store.NewMemoryNetwork(), nil
	case BackendNATS:
		return natskv.New(natskv.Config{
			URL:     cfg.Store.NATS.URL,
			Bucket:  cfg.Store.NATS.Bucket,
			Timeout: Duration(cfg.Store.NATS.Timeout),
			Logger:  logger,
		}), nil
	case BackendSQLite:
		return sqlite.New(cfg.Store.SQLite.Path), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// ThingConfig maps the file configuration onto a thing.Config. Callers fill
// in the notifier, action handler, loggers, metrics and ledger.
func ThingConfig(cfg Config) thing.Config {
	tc := thing.DefaultConfig()
	if d := Duration(cfg.Polling.Subscription); d > 0 {
		tc.SubscriptionInterval = d
	}
	if d := Duration(cfg.Polling.Receiver); d > 0 {
		tc.ReceiveInterval = d
	}
	if d := Duration(cfg.Polling.Monitor); d > 0 {
		tc.MonitorInterval = d
	}
	if d := Duration(cfg.Polling.RequestTimeout); d > 0 {
		tc.RequestTimeout = d
	}
	tc.NotifyTimeout = cfg.Polling.NotifyTimeout
	tc.ForceDone = cfg.Polling.ForceDone
	tc.OpsPerSecond = cfg.Store.OpsPerSecond
	tc.Burst = cfg.Store.Burst
	tc.FailureThreshold = cfg.Store.FailureThreshold
	tc.Backoff = connection.BackoffConfig{
		Initial: Duration(cfg.Store.InitialBackoff),
		Max:     Duration(cfg.Store.MaxBackoff),
	}
	tc.Backend = cfg.Store.Backend
	return tc
}
