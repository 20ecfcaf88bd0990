// Package pos runs terminal sessions: each session owns one cart, resolves
// catalog identifiers into items and checks the cart out into a sale sink.
package pos

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/inventrak/internal/domain/cart"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/domain/sale"
)

// ErrSessionNotFound is returned for an unknown or closed session.
var ErrSessionNotFound = errors.New("session not found")

// SnapshotStore persists cart contents so a session survives a restart.
// Load returns ErrSessionNotFound when nothing is stored for the session.
type SnapshotStore interface {
	Save(ctx context.Context, sessionID string, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// Snapshot is the persisted form of a session. Done maps the idempotency
// keys of completed checkouts to their Transactions.
type Snapshot struct {
	Cashier string                       `json:"cashier"`
	Lines   []cart.LineItem              `json:"lines"`
	Done    map[string]*sale.Transaction `json:"done,omitempty"`
}

// View is a consistent read of a session's cart: Total always matches Lines.
type View struct {
	SessionID string
	Cashier   string
	Lines     []cart.LineItem
	Total     decimal.Decimal
	Units     int
}

// CheckoutRequest carries the checkout details supplied by the terminal.
type CheckoutRequest struct {
	// Cashier overrides the session's cashier when set.
	Cashier string
	Method  sale.PaymentMethod
	// IdempotencyKey makes a retried checkout return the first Transaction.
	IdempotencyKey string
}

// Options holds the optional collaborators of a Service.
type Options struct {
	Snapshots      SnapshotStore
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	Now            func() time.Time
}

type session struct {
	id      string
	mu      sync.Mutex
	cashier string
	cart    *cart.Cart
	done    map[string]*sale.Transaction
	touched time.Time
	closed  bool
}

func (s *session) view() View {
	return View{
		SessionID: s.id,
		Cashier:   s.cashier,
		Lines:     s.cart.Lines(),
		Total:     s.cart.Total(),
		Units:     s.cart.Units(),
	}
}

// Service owns the terminal sessions.
type Service struct {
	catalog   catalog.Repository
	sink      sale.Sink
	snapshots SnapshotStore
	now       func() time.Time
	tracer    trace.Tracer

	checkouts  metric.Int64Counter
	revenue    metric.Float64Counter
	operations metric.Int64Counter

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService creates a Service that resolves items from items and records
// checkouts into sink.
func NewService(items catalog.Repository, sink sale.Sink, opts Options) (*Service, error) {
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	meter := opts.MeterProvider.Meter("github.com/xenking/inventrak/internal/domain/pos")
	checkouts, err := meter.Int64Counter("pos.checkouts",
		metric.WithDescription("Completed checkouts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkouts counter")
	}
	revenue, err := meter.Float64Counter("pos.checkout.revenue",
		metric.WithDescription("Checked out revenue"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	operations, err := meter.Int64Counter("pos.cart.operations",
		metric.WithDescription("Cart mutations by operation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "operations counter")
	}

	return &Service{
		catalog:    items,
		sink:       sink,
		snapshots:  opts.Snapshots,
		now:        opts.Now,
		tracer:     opts.TracerProvider.Tracer("github.com/xenking/inventrak/internal/domain/pos"),
		checkouts:  checkouts,
		revenue:    revenue,
		operations: operations,
		sessions:   make(map[string]*session),
	}, nil
}

// OpenSession starts a session with an empty cart.
func (s *Service) OpenSession(ctx context.Context, cashier string) (View, error) {
	sess := &session{
		id:      uuid.New().String(),
		cashier: cashier,
		cart:    cart.New(),
		touched: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	s.persist(ctx, sess)
	sess.mu.Unlock()

	zctx.From(ctx).Debug("Session opened", zap.String("session", sess.id), zap.String("cashier", cashier))
	return sess.view(), nil
}

// View returns the session's cart.
func (s *Service) View(ctx context.Context, sessionID string) (View, error) {
	var v View
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		v = sess.view()
		return nil
	})
	return v, err
}

// AddItem adds one unit of the catalog item to the session's cart.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string) (View, error) {
	item, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return View{}, errors.Wrapf(err, "get item %q", productID)
	}
	return s.mutate(ctx, sessionID, "add", func(c *cart.Cart) error {
		c.AddItem(*item)
		return nil
	})
}

// SetQuantity sets a line's quantity; zero or less removes the line. A line
// that is not in the cart yields *cart.UnknownItemError.
func (s *Service) SetQuantity(ctx context.Context, sessionID, productID string, qty int) (View, error) {
	return s.mutate(ctx, sessionID, "set_quantity", func(c *cart.Cart) error {
		if !c.SetQuantity(productID, qty) {
			return &cart.UnknownItemError{ProductID: productID}
		}
		return nil
	})
}

// RemoveItem deletes a line. A line that is not in the cart yields
// *cart.UnknownItemError.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (View, error) {
	return s.mutate(ctx, sessionID, "remove", func(c *cart.Cart) error {
		if !c.RemoveItem(productID) {
			return &cart.UnknownItemError{ProductID: productID}
		}
		return nil
	})
}

// Clear empties the session's cart.
func (s *Service) Clear(ctx context.Context, sessionID string) (View, error) {
	return s.mutate(ctx, sessionID, "clear", func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// Checkout records the session's cart as a Transaction and empties the cart.
//
// The cart is cleared only after the sink accepted the Transaction, so a
// failed recording leaves the cart intact for a retry.
func (s *Service) Checkout(ctx context.Context, sessionID string, req CheckoutRequest) (*sale.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "pos.Checkout",
		trace.WithAttributes(attribute.String("pos.session", sessionID)),
	)
	defer span.End()

	var tx *sale.Transaction
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		if req.IdempotencyKey != "" {
			if prev, ok := sess.done[req.IdempotencyKey]; ok {
				tx = prev
				return nil
			}
		}

		cashier := req.Cashier
		if cashier == "" {
			cashier = sess.cashier
		}
		snap, err := sale.Snapshot(sess.cart, sale.Details{
			Cashier: cashier,
			Method:  req.Method,
			At:      s.now(),
		})
		if err != nil {
			return err
		}
		if err := s.sink.Record(ctx, snap); err != nil {
			return errors.Wrap(err, "record sale")
		}

		sess.cart.Clear()
		sess.touched = s.now()
		if req.IdempotencyKey != "" {
			if sess.done == nil {
				sess.done = make(map[string]*sale.Transaction)
			}
			sess.done[req.IdempotencyKey] = snap
		}
		s.persist(ctx, sess)
		tx = snap

		method := attribute.String("payment_method", string(snap.PaymentMethod))
		s.checkouts.Add(ctx, 1, metric.WithAttributes(method))
		s.revenue.Add(ctx, snap.Total.InexactFloat64(), metric.WithAttributes(method))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("pos.transaction", tx.ID))
	zctx.From(ctx).Info("Checkout completed",
		zap.String("session", sessionID),
		zap.String("transaction", tx.ID),
		zap.String("total", tx.Total.StringFixed(2)),
		zap.String("payment_method", string(tx.PaymentMethod)),
	)
	return tx, nil
}

// CloseSession discards the session and its persisted snapshot. A session
// that is neither in memory nor persisted yields ErrSessionNotFound.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	return s.withSession(ctx, sessionID, func(sess *session) error {
		if s.snapshots != nil {
			if err := s.snapshots.Delete(ctx, sessionID); err != nil {
				return errors.Wrap(err, "delete snapshot")
			}
		}
		sess.closed = true
		return nil
	})
}

// Evict drops in-memory sessions untouched for longer than idle. Persisted
// snapshots are kept, so an evicted session is restored on next use.
func (s *Service) Evict(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if sess.touched.Before(cutoff) {
			sess.closed = true
			delete(s.sessions, id)
			n++
		}
		sess.mu.Unlock()
	}
	return n
}

// Sessions returns the number of sessions held in memory.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) mutate(ctx context.Context, sessionID, op string, fn func(c *cart.Cart) error) (View, error) {
	var v View
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		if err := fn(sess.cart); err != nil {
			return err
		}
		sess.touched = s.now()
		s.persist(ctx, sess)
		v = sess.view()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	s.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	return v, nil
}

// withSession runs fn with the session locked.
func (s *Service) withSession(ctx context.Context, sessionID string, fn func(sess *session) error) error {
	for {
		sess, err := s.session(ctx, sessionID)
		if err != nil {
			return err
		}
		sess.mu.Lock()
		if sess.closed {
			// Evicted or closed between lookup and lock; drop the stale
			// entry and look it up again.
			sess.mu.Unlock()
			s.forget(sess)
			continue
		}
		err = fn(sess)
		closed := sess.closed
		sess.mu.Unlock()
		if closed {
			s.forget(sess)
		}
		return err
	}
}

// forget removes sess from memory unless it was already replaced.
func (s *Service) forget(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
}

func (s *Service) session(ctx context.Context, sessionID string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}
	if s.snapshots == nil {
		return nil, ErrSessionNotFound
	}

	snap, err := s.snapshots.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "load snapshot")
	}
	restored := &session{
		id:      sessionID,
		cashier: snap.Cashier,
		cart:    cart.Restore(snap.Lines),
		done:    snap.Done,
		touched: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess, nil
	}
	s.sessions[sessionID] = restored
	zctx.From(ctx).Debug("Session restored", zap.String("session", sessionID), zap.Int("lines", restored.cart.Len()))
	return restored, nil
}

// persist saves the session snapshot. Failures are logged: the in-memory cart
// stays authoritative.
func (s *Service) persist(ctx context.Context, sess *session) {
	if s.snapshots == nil {
		return
	}
	err := s.snapshots.Save(ctx, sess.id, Snapshot{
		Cashier: sess.cashier,
		Lines:   sess.cart.Lines(),
		Done:    sess.done,
	})
	if err != nil {
		zctx.From(ctx).Warn("Save cart snapshot", zap.String("session", sess.id), zap.Error(err))
	}
}
