package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/secrets"
	"github.com/roach88/phasetrack/internal/store"
)

// Service exposes the core operations. It is safe for concurrent use.
type Service struct {
	store   *store.Store
	logger  *slog.Logger
	clock   domain.Clock
	ids     domain.IDGenerator
	hasher  secrets.Hasher
	policy  domain.TransitionPolicy
	metrics *Metrics

	absentOnce sync.Once
	absentHash string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for CreatedAt and similar stamps.
func WithClock(c domain.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator sets the identifier source.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithHasher sets the password hasher. Default: bcrypt at its default cost.
func WithHasher(h secrets.Hasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithTransitionPolicy sets the state-change rule.
// Default: domain.PermissiveTransitions.
func WithTransitionPolicy(p domain.TransitionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMetrics records every operation in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service over st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
		clock:  domain.SystemClock{},
		ids:    domain.UUIDv7Generator{},
		hasher: secrets.Bcrypt{},
		policy: domain.PermissiveTransitions{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// run executes fn as operation op and applies the error boundary.
func run[T any](ctx context.Context, s *Service, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	err = s.boundary(op, err)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	s.metrics.Observe(ctx, op, outcome, elapsed)
	s.logger.Debug("operation", "op", op, "outcome", outcome, "duration", elapsed)

	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// exec is run for operations without a result value.
func (s *Service) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := run(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// inTx is exec with fn wrapped in one store transaction.
func (s *Service) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *store.Tx) error) error {
	return s.exec(ctx, op, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx *store.Tx) error { return fn(ctx, tx) })
	})
}

// boundary converts err into a *domain.Error.
func (s *Service) boundary(op string, err error) error {
	if err == nil {
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return &domain.Error{Kind: domain.KindNotFound, Message: "record not found", Err: err}
	case errors.Is(err, store.ErrUniqueViolation):
		return &domain.Error{Kind: domain.KindConflict, Message: "record already exists", Err: err}
	case errors.Is(err, store.ErrForeignKeyViolation):
		return &domain.Error{Kind: domain.KindRestricted, Message: "record is still referenced", Err: err}
	}

	s.logger.Error("storage failure", "op", op, "error", err)
	return domain.StoreFailure(err)
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if k := domain.KindOf(err); k != "" {
		return strings.ToLower(string(k))
	}
	return "error"
}

// missing turns store.ErrNotFound into a NotFound error naming the entity.
// Other errors are returned unchanged.
func missing(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return &domain.Error{Kind: domain.KindNotFound, Message: fmt.Sprintf(format, args...) + " not found", Err: err}
	}
	return err
}

// conflict turns store.ErrUniqueViolation into a Conflict error.
func conflict(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrUniqueViolation) {
		return &domain.Error{Kind: domain.KindConflict, Message: fmt.Sprintf(format, args...), Err: err}
	}
	return err
}

// restricted turns store.ErrForeignKeyViolation into a Restricted error.
func restricted(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrForeignKeyViolation) {
		return &domain.Error{Kind: domain.KindRestricted, Message: fmt.Sprintf(format, args...), Err: err}
	}
	return err
}
