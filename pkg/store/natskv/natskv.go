// Package natskv stores Thing records in a NATS JetStream key-value bucket.
//
// Every record field becomes one KV entry under the key
//
//	<address>.<base64url(field)>
//
// and the record itself is a marker entry under <address> holding the type
// tag. Field updates are compare-and-swap on the entry revision, which gives
// the same version-increment semantics as MutableData entries.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/safething/safething-go/pkg/store"
)

// Defaults.
const (
	DefaultBucket     = "safething"
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 5
)

// Config configures the JetStream network.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// Bucket is the KV bucket name. Created if missing.
	Bucket string

	// Timeout bounds a single KV operation.
	Timeout time.Duration

	// MaxRetries bounds compare-and-swap retries on concurrent updates.
	MaxRetries int

	// Logger is the operational logger. Nil uses slog.Default().
	Logger *slog.Logger
}

// Network connects sessions to a JetStream KV bucket.
type Network struct {
	config Config
	logger *slog.Logger
}

// New creates a Network with defaults applied to cfg.
func New(cfg Config) *Network {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Network{config: cfg, logger: logger}
}

// Connect dials NATS and binds the KV bucket.
func (n *Network) Connect(ctx context.Context, creds store.Credentials) (store.Handle, error) {
	opts := []nats.Option{
		nats.Timeout(n.config.Timeout),
		nats.MaxReconnects(-1),
	}
	if creds.Identity != "" {
		opts = append(opts, nats.Name("safething-"+creds.Identity))
	}
	if creds.Secret != "" {
		opts = append(opts, nats.Token(creds.Secret))
	}

	nc, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: nats connect %s: %w", store.ErrConnection, n.config.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: jetstream: %w", store.ErrConnection, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	kv, err := js.KeyValue(ctx, n.config.Bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      n.config.Bucket,
			Description: "SAFEthing records",
			History:     1,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: bind bucket %s: %w", store.ErrConnection, n.config.Bucket, err)
	}

	n.logger.Debug("natskv: connected", "url", n.config.URL, "bucket", n.config.Bucket, "identity", creds.Identity)

	return &handle{
		nc:         nc,
		kv:         kv,
		timeout:    n.config.Timeout,
		maxRetries: n.config.MaxRetries,
	}, nil
}

var _ store.Network = (*Network)(nil)

type handle struct {
	nc         *nats.Conn
	kv         jetstream.KeyValue
	timeout    time.Duration
	maxRetries int
}

var (
	_ store.Handle       = (*handle)(nil)
	_ store.Disconnector = (*handle)(nil)
)

// FieldKey returns the KV key of a record field.
func FieldKey(address, field string) string {
	return address + "." + base64.RawURLEncoding.EncodeToString([]byte(field))
}

// ParseFieldKey returns the field name encoded in a KV key of the record.
func ParseFieldKey(address, key string) (string, bool) {
	enc, ok := strings.CutPrefix(key, address+".")
	if !ok || enc == "" {
		return "", false
	}
	b, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func (h *handle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}

func (h *handle) PutRecord(ctx context.Context, address string, typeTag uint64) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	_, err := h.kv.Create(ctx, address, []byte(strconv.FormatUint(typeTag, 10)))
	if err != nil && !isConflict(err) {
		return wrap("put record "+address, err)
	}
	return nil
}

func (h *handle) recordExists(ctx context.Context, address string) error {
	if _, err := h.kv.Get(ctx, address); err != nil {
		return wrap("record "+address, err)
	}
	return nil
}

func (h *handle) GetField(ctx context.Context, address, key string) (string, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	entry, err := h.kv.Get(ctx, FieldKey(address, key))
	if err != nil {
		return "", wrap("get "+key, err)
	}
	return string(entry.Value()), nil
}

func (h *handle) SetField(ctx context.Context, address, key, value string) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if err := h.recordExists(ctx, address); err != nil {
		return err
	}

	kvKey := FieldKey(address, key)
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		entry, err := h.kv.Get(ctx, kvKey)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
			_, err = h.kv.Create(ctx, kvKey, []byte(value))
		case err == nil:
			_, err = h.kv.Update(ctx, kvKey, []byte(value), entry.Revision())
		}
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return wrap("set "+key, err)
		}
	}
	return fmt.Errorf("%w: set %s: %d conflicting updates", store.ErrNetwork, key, h.maxRetries+1)
}

func (h *handle) ListFields(ctx context.Context, address string) ([]store.Field, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if err := h.recordExists(ctx, address); err != nil {
		return nil, err
	}

	w, err := h.kv.Watch(ctx, address+".*", jetstream.IgnoreDeletes())
	if err != nil {
		return nil, wrap("list "+address, err)
	}
	defer func() { _ = w.Stop() }()

	var fields []store.Field
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: list %s: %w", store.ErrNetwork, address, ctx.Err())
		case entry, ok := <-w.Updates():
			if !ok {
				return fields, nil
			}
			// A nil entry marks the end of the initial values.
			if entry == nil {
				return fields, nil
			}
			name, ok := ParseFieldKey(address, entry.Key())
			if !ok {
				continue
			}
			fields = append(fields, store.Field{Key: name, Value: string(entry.Value())})
		}
	}
}

// Disconnect closes the NATS connection. The handle fails every operation
// afterwards.
func (h *handle) Disconnect() {
	h.nc.Close()
}

func (h *handle) Close() error {
	h.nc.Close()
	return nil
}

func wrap(op string, err error) error {
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	if errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("%s: %w: %w", op, store.ErrClosed, err)
	}
	return fmt.Errorf("%s: %w: %w", op, store.ErrNetwork, err)
}

// isConflict reports a wrong-revision or key-exists response.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "wrong last sequence") ||
		strings.Contains(msg, "10071") ||
		strings.Contains(msg, "key exists")
}
