package sale

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// MultiSink records a transaction into several sinks. The first sink is the
// system of record: its failure is returned and the rest are skipped. Failures
// of the remaining sinks are logged and otherwise ignored.
type MultiSink []Sink

var _ Sink = MultiSink(nil)

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, tx *Transaction) error {
	if len(m) == 0 {
		return nil
	}
	if err := m[0].Record(ctx, tx); err != nil {
		return errors.Wrap(err, "record transaction")
	}
	for i, s := range m[1:] {
		if err := s.Record(ctx, tx); err != nil {
			zctx.From(ctx).Warn("Secondary sale sink failed",
				zap.Int("sink", i+1),
				zap.String("transaction", tx.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, tx *Transaction) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, tx *Transaction) error {
	return f(ctx, tx)
}
