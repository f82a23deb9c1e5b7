package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/retry"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// DefaultMaxRetries is the retry budget for the final write of each
// protocol when none is configured.
const DefaultMaxRetries = 1

// errAborted marks a transaction rolled back because the protocol decided
// on a non-success outcome.
var errAborted = errors.New("transaction aborted")

// Backend runs the persistence protocols against a store.
//
// Thread-safety: Backend holds no mutable state of its own and is safe for
// concurrent use. Coordination between concurrent requests happens in the
// database through the registry and lock marker.
type Backend struct {
	store      *store.Store
	logger     *slog.Logger
	uuidGen    UUIDGenerator
	tokenGen   LockTokenGenerator
	now        func() time.Time
	maxRetries int
	backoff    func(int) time.Duration
	metrics    *Metrics
}

// Option allows configuration of backend parameters.
type Option func(*Backend)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithMaxRetries sets how many times the final write is retried after a
// transient write conflict. Default: DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(b *Backend) {
		b.maxRetries = n
	}
}

// WithRetryBackoff sets the delay between retries of the final write.
// Default: no delay.
func WithRetryBackoff(backoff func(retry int) time.Duration) Option {
	return func(b *Backend) {
		b.backoff = backoff
	}
}

// WithUUIDGenerator sets the generator for new document uuids.
// Default: UUIDv7Generator.
func WithUUIDGenerator(gen UUIDGenerator) Option {
	return func(b *Backend) {
		b.uuidGen = gen
	}
}

// WithLockTokenGenerator sets the generator for lock marker tokens.
// Default: a ULID generator.
func WithLockTokenGenerator(gen LockTokenGenerator) Option {
	return func(b *Backend) {
		b.tokenGen = gen
	}
}

// WithClock sets the time source used when a request has no timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// WithMetrics sets the collectors outcomes are recorded in. Default: an
// unregistered Metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Backend) {
		b.metrics = m
	}
}

// New creates a Backend over s.
func New(s *store.Store, opts ...Option) *Backend {
	b := &Backend{
		store:      s,
		logger:     slog.Default(),
		uuidGen:    UUIDv7Generator{},
		tokenGen:   NewULIDGenerator(),
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = NewMetrics()
	}

	return b
}

// Store returns the store the backend writes to.
func (b *Backend) Store() *store.Store {
	return b.store
}

// Metrics returns the backend's collectors.
func (b *Backend) Metrics() *Metrics {
	return b.metrics
}

// requestTime returns ts, or the current time in milliseconds when ts is
// unset.
func (b *Backend) requestTime(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return b.now().UnixMilli()
}

// finalWrite runs fn under the retry policy for transient write conflicts.
func (b *Backend) finalWrite(ctx context.Context, operation string, logger *slog.Logger, fn func() error) error {
	policy := retry.Policy{
		MaxRetries: b.maxRetries,
		Retryable:  store.IsWriteConflict,
		Backoff:    b.backoff,
		OnRetry: func(n int, err error) {
			b.metrics.retries.WithLabelValues(operation).Inc()
			logger.Warn("write conflict, retrying",
				"operation", operation,
				"retry", n,
				"max_retries", b.maxRetries,
				"error", err,
			)
		},
	}
	return retry.Do(ctx, policy, fn)
}

// isWriteConflict reports whether err should surface as a write-conflict
// outcome: a registry collision or a transient conflict that outlasted the
// retry budget or hit outside the final write.
func isWriteConflict(err error) bool {
	return store.IsConflict(err) || store.IsWriteConflict(err)
}
