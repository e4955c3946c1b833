package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher renders and sends queued emails on a fixed set of workers.
// Enqueue never blocks: when the queue is full the email is dropped and logged.
type Dispatcher struct {
	sender  Sender
	log     *zap.Logger
	timeout time.Duration
	queue   chan Email

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of queueSize emails.
// timeout bounds each delivery attempt.
func NewDispatcher(sender Sender, log *zap.Logger, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		sender:  sender,
		log:     log,
		timeout: timeout,
		queue:   make(chan Email, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Enqueue schedules e for delivery.
func (d *Dispatcher) Enqueue(e Email) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("email dropped, dispatcher closed", zap.String("kind", string(e.Kind)))
		return
	}
	select {
	case d.queue <- e:
	default:
		d.log.Warn("email dropped, queue full", zap.String("kind", string(e.Kind)))
	}
}

// Send renders and delivers e synchronously on the caller's goroutine.
func (d *Dispatcher) Send(ctx context.Context, e Email) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return d.deliver(ctx, e)
}

// Close stops accepting emails and waits for queued ones to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for e := range d.queue {
		if err := d.deliver(context.Background(), e); err != nil {
			d.log.Error("email delivery failed", zap.String("kind", string(e.Kind)), zap.Error(err))
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Email) error {
	msg, err := Render(e)
	if err != nil {
		return err
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.sender.Send(ctx, msg)
}
