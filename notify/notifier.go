// Package notify is the best-effort kitchen-ticket channel. Publishing a
// ticket must never block or fail the order save path: the notifier is a
// buffered channel consumed by its own goroutine, and overflow drops the
// ticket with a logged count instead of backpressuring order capture.
package notify

import (
	"context"
	"sync/atomic"

	"restaurant-pos/models"

	"go.uber.org/zap"
)

// Handler consumes one ticket, e.g. by driving a receipt printer.
type Handler func(order models.Order)

type Notifier struct {
	ch      chan models.Order
	handler Handler
	log     *zap.Logger
	dropped atomic.Int64
}

func New(log *zap.Logger, buffer int, handler Handler) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{
		ch:      make(chan models.Order, buffer),
		handler: handler,
		log:     log,
	}
}

// Start launches the consumer loop. It stops when the context is cancelled;
// a panicking handler is contained so one bad ticket cannot kill the loop.
func (n *Notifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case order := <-n.ch:
				n.deliver(order)
			}
		}
	}()
}

func (n *Notifier) deliver(order models.Order) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn("ticket handler panicked",
				zap.String("order_id", order.ID), zap.Any("panic", r))
		}
	}()
	n.handler(order)
}

// Publish queues a ticket without blocking. Full buffer drops the ticket.
func (n *Notifier) Publish(order models.Order) {
	select {
	case n.ch <- order:
	default:
		n.dropped.Add(1)
		n.log.Warn("ticket dropped, notifier buffer full",
			zap.String("order_id", order.ID),
			zap.Int64("dropped_total", n.dropped.Load()))
	}
}

// Dropped reports how many tickets were discarded due to a full buffer.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}
