package thing

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/connection"
	"github.com/safething/safething-go/pkg/log"
	"github.com/safething/safething-go/pkg/metrics"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/persistence"
	"github.com/safething/safething-go/pkg/store"
	"github.com/safething/safething-go/pkg/subscription"
)

// Thing errors.
var (
	// ErrInvalidArgument is returned for malformed input such as a Thing
	// id shorter than model.MinThingIDLen.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by operations on a closed Thing.
	ErrClosed = errors.New("thing closed")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config configures a Thing.
type Config struct {
	// Credentials identify the Thing to the network. An empty Identity
	// uses the Thing id.
	Credentials store.Credentials

	// Notifier receives subscription notifications on the subscription
	// loop goroutine.
	Notifier subscription.Notifier

	// ActionHandler serves incoming action requests on the receiver loop
	// goroutine.
	ActionHandler action.Handler

	// SubscriptionInterval is the subscription loop period (default 5s).
	SubscriptionInterval time.Duration

	// ReceiveInterval is the receiver loop period (default 4s).
	ReceiveInterval time.Duration

	// MonitorInterval is the poll period of sent-request monitors (default 2s).
	MonitorInterval time.Duration

	// RequestTimeout bounds how long a sent request is monitored (default 60s).
	RequestTimeout time.Duration

	// NotifyTimeout reports model.StateTimedOut to the state handler of a
	// request that timed out.
	NotifyTimeout bool

	// ForceDone makes the receiver mark every handled request Done.
	ForceDone bool

	// OpsPerSecond limits store operations across all handles of the
	// Thing. Zero disables limiting.
	OpsPerSecond float64
	Burst        int

	// FailureThreshold and Backoff control handle reconnection.
	FailureThreshold int
	Backoff          connection.BackoffConfig

	// Backend labels store metrics.
	Backend string

	// Logger is the operational logger. Nil uses slog.Default().
	Logger *slog.Logger

	// ProtocolLogger captures protocol events. Nil disables capture.
	ProtocolLogger log.Logger

	Metrics *metrics.Metrics

	// Ledger records sent requests so they can be resumed.
	Ledger *persistence.Ledger
}

// DefaultConfig returns a configuration with the reference intervals.
func DefaultConfig() Config {
	return Config{
		SubscriptionInterval: subscription.DefaultPollInterval,
		ReceiveInterval:      action.DefaultReceiveInterval,
		MonitorInterval:      action.DefaultMonitorInterval,
		RequestTimeout:       action.DefaultTimeout,
		Backend:              "store",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SubscriptionInterval < 0 || c.ReceiveInterval < 0 || c.MonitorInterval < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("%w: negative interval", ErrInvalidConfig)
	}
	if c.OpsPerSecond < 0 {
		return fmt.Errorf("%w: negative ops_per_second", ErrInvalidConfig)
	}
	if c.MonitorInterval > 0 && c.RequestTimeout > 0 && c.MonitorInterval > c.RequestTimeout {
		return fmt.Errorf("%w: monitor interval %s exceeds request timeout %s",
			ErrInvalidConfig, c.MonitorInterval, c.RequestTimeout)
	}
	return nil
}

// ValidateID checks a Thing id.
func ValidateID(thingID string) error {
	if len(thingID) < model.MinThingIDLen {
		return fmt.Errorf("%w: thing id %q shorter than %d bytes", ErrInvalidArgument, thingID, model.MinThingIDLen)
	}
	return nil
}
