package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/safething/safething-go/pkg/config"
	"github.com/safething/safething-go/pkg/log"
	"github.com/safething/safething-go/pkg/metrics"
	"github.com/safething/safething-go/pkg/persistence"
	"github.com/safething/safething-go/pkg/store"
	"github.com/safething/safething-go/pkg/thing"
)

type globalOptions struct {
	configPath  string
	thingID     string
	logLevel    string
	protocolLog string
}

// runtime is everything a command needs to build a Thing.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	net      store.Network
	protocol log.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	ledger   *persistence.Ledger
	closers  []io.Closer
}

// loadRuntime reads the configuration, applies flag overrides and opens
// the store network and the protocol log. When ephemeral is set and no
// Thing id is configured, a random one is generated.
func loadRuntime(opts *globalOptions, ephemeral bool) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.thingID != "" {
		cfg.Thing.ID = opts.thingID
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.protocolLog != "" {
		cfg.Logging.ProtocolLog = opts.protocolLog
	}
	if cfg.Thing.ID == "" {
		if !ephemeral {
			return nil, fmt.Errorf("thing id required (--id or thing.id)")
		}
		cfg.Thing.ID = "thingctl-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}

	rt := &runtime{
		cfg:    cfg,
		logger: config.NewLogger(cfg, os.Stderr),
	}
	slog.SetDefault(rt.logger)

	if rt.net, err = config.OpenNetwork(cfg, rt.logger); err != nil {
		return nil, err
	}

	var loggers []log.Logger
	if path := cfg.Logging.ProtocolLog; path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, fl)
		loggers = append(loggers, fl)
	}
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		loggers = append(loggers, log.NewSlogAdapter(rt.logger))
	}
	switch len(loggers) {
	case 0:
	case 1:
		rt.protocol = loggers[0]
	default:
		rt.protocol = log.NewMultiLogger(loggers...)
	}
	return rt, nil
}

// enableMetrics creates the Prometheus registry served by run.
func (rt *runtime) enableMetrics() error {
	rt.metrics = metrics.NewMetrics()
	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return rt.metrics.Register(rt.registry)
}

// openLedger opens the request ledger if one is configured and prunes
// entries older than the retention.
func (rt *runtime) openLedger() error {
	if rt.cfg.Ledger.Path == "" {
		return nil
	}
	ledger, err := persistence.OpenLedger(rt.cfg.Ledger.Path, rt.cfg.Thing.ID)
	if err != nil {
		return err
	}
	if retention := config.Duration(rt.cfg.Ledger.Retention); retention > 0 {
		n, err := ledger.Prune(time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			rt.logger.Info("pruned request ledger", "path", ledger.Path(), "removed", n)
		}
	}
	rt.ledger = ledger
	return nil
}

// thingConfig assembles the Thing configuration.
func (rt *runtime) thingConfig() thing.Config {
	tc := config.ThingConfig(rt.cfg)
	tc.Logger = rt.logger
	tc.ProtocolLogger = rt.protocol
	tc.Metrics = rt.metrics
	tc.Ledger = rt.ledger
	return tc
}

// newThing connects the configured Thing.
func (rt *runtime) newThing(ctx context.Context, tc thing.Config) (*thing.Thing, error) {
	th, err := thing.New(ctx, rt.cfg.Thing.ID, rt.net, tc)
	if err != nil {
		return nil, err
	}
	rt.closers = append([]io.Closer{th}, rt.closers...)
	return th, nil
}

// Close releases the Thing and the protocol log, in that order.
func (rt *runtime) Close() {
	for _, c := range rt.closers {
		if err := c.Close(); err != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
	rt.closers = nil
}

// register loads the profile and registers the Thing.
func (rt *runtime) register(ctx context.Context, th *thing.Thing) error {
	profile, err := config.LoadProfile(rt.cfg.Thing.Profile)
	if err != nil {
		return err
	}
	if err := th.Register(ctx, profile.Attributes, profile.Topics, profile.Actions); err != nil {
		return fmt.Errorf("register %s: %w", th.ID(), err)
	}
	rt.logger.Info("thing registered",
		"thing_id", th.ID(),
		"backend", rt.cfg.Store.Backend,
		"attributes", len(profile.Attributes),
		"topics", len(profile.Topics),
		"actions", len(profile.Actions))
	return nil
}
