package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tivrox-backend/internal/metrics"
)

// Job is one delivery attempt unit. Run is retried until it succeeds or attempts run out.
type Job struct {
	Channel   string
	BookingID string
	Run       func(ctx context.Context) error
}

type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	JobTimeout  time.Duration
}

// Dispatcher runs notification jobs on a fixed worker pool behind a bounded queue.
type Dispatcher struct {
	opts  DispatcherOptions
	log   *slog.Logger
	queue chan Job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(opts DispatcherOptions, log *slog.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 8 * time.Second
	}

	d := &Dispatcher{
		opts:  opts,
		log:   log,
		queue: make(chan Job, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue never blocks; it returns false when the queue is full or closed.
func (d *Dispatcher) Enqueue(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notify: dispatcher closed, dropping job",
			slog.String("channel", job.Channel),
			slog.String("booking_id", job.BookingID),
		)
		metrics.IncNotification(job.Channel, "dropped")
		return false
	}
	select {
	case d.queue <- job:
		return true
	default:
		d.log.Warn("notify: queue full, dropping job",
			slog.String("channel", job.Channel),
			slog.String("booking_id", job.BookingID),
		)
		metrics.IncNotification(job.Channel, "dropped")
		return false
	}
}

// Close stops intake and waits for queued jobs until ctx expires.
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

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.run(job)
	}
}

func (d *Dispatcher) run(job Job) {
	log := d.log.With(slog.String("channel", job.Channel), slog.String("booking_id", job.BookingID))
	delay := d.opts.BaseDelay
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.JobTimeout)
		err := job.Run(ctx)
		cancel()
		if err == nil {
			log.Info("notify: sent", slog.Int("attempt", attempt))
			metrics.IncNotification(job.Channel, "sent")
			return
		}
		log.Warn("notify: attempt failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		if attempt < d.opts.MaxAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	log.Error("notify: giving up", slog.Int("attempts", d.opts.MaxAttempts))
	metrics.IncNotification(job.Channel, "failed")
}
