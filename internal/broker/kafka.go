// Package broker publishes completed sales to Kafka.
package broker

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/inventrak/internal/codec"
	"github.com/xenking/inventrak/internal/domain/sale"
)

// EventSaleCompleted is the event type of every message the publisher writes.
const EventSaleCompleted = "sale.completed"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ sale.Sink = (*SalePublisher)(nil)

// SalePublisher is a sale.Sink that writes one message per transaction,
// keyed by transaction ID.
type SalePublisher struct {
	w   MessageWriter
	now func() time.Time
}

// NewWriter returns a Kafka writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

// NewSalePublisher wraps w.
func NewSalePublisher(w MessageWriter) *SalePublisher {
	return &SalePublisher{w: w, now: time.Now}
}

// Record publishes tx.
func (p *SalePublisher) Record(ctx context.Context, tx *sale.Transaction) error {
	msg := Message(tx, p.now())
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish sale %s", tx.ID)
	}
	zctx.From(ctx).Debug("Published sale",
		zap.String("transaction", tx.ID),
		zap.Int("bytes", len(msg.Value)),
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *SalePublisher) Close() error {
	return p.w.Close()
}

// Message builds the Kafka message for tx. The value is an envelope with
// the event type and the encoded transaction.
func Message(tx *sale.Transaction, at time.Time) kafka.Message {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(EventSaleCompleted) })
		e.Field("transaction", func(e *jx.Encoder) { codec.Transaction(e, tx) })
	})
	return kafka.Message{
		Key:   []byte(tx.ID),
		Value: e.Bytes(),
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventSaleCompleted)},
		},
	}
}

// ParseMessage decodes a message written by Message.
func ParseMessage(msg kafka.Message) (*sale.Transaction, error) {
	var (
		typ string
		tx  *sale.Transaction
	)
	err := jx.DecodeBytes(msg.Value).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			typ, err = d.Str()
		case "transaction":
			tx, err = codec.DecodeTransaction(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode sale event")
	}
	if typ != EventSaleCompleted {
		return nil, errors.Errorf("unexpected event type %q", typ)
	}
	if tx == nil {
		return nil, errors.New("sale event has no transaction")
	}
	return tx, nil
}
