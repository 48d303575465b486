package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	QueueSize         int
	NumWorkers        int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	SendTimeout       time.Duration
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		QueueSize:         256,
		NumWorkers:        2,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        1 * time.Minute,
		BackoffMultiplier: 2.0,
		SendTimeout:       30 * time.Second,
	}
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	d := DefaultWorkerConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = d.NumWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	return c
}

type job struct {
	notification Notification
	enqueuedAt   time.Time
}

// Worker delivers queued notifications through a Sender using a fixed pool
// of goroutines.
type Worker struct {
	config WorkerConfig
	sender Sender

	jobs   chan job
	stopCh chan struct{}
	wg     sync.WaitGroup
	// cancel aborts in-flight deliveries when Stop runs out of time.
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorker creates a new notification worker. Call Start before Enqueue.
func NewWorker(config WorkerConfig, sender Sender) *Worker {
	config = config.withDefaults()
	return &Worker{
		config: config,
		sender: sender,
		jobs:   make(chan job, config.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches worker goroutines. ctx bounds every delivery.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)

	slog.Info("starting notification worker",
		"workers", w.config.NumWorkers,
		"queue_size", w.config.QueueSize,
		"max_attempts", w.config.MaxAttempts,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Enqueue schedules n for delivery without blocking. It returns
// ErrQueueFull when the buffer is full and ErrQueueStopped after Stop.
func (w *Worker) Enqueue(n Notification) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrQueueStopped
	}

	select {
	case w.jobs <- job{notification: n, enqueuedAt: time.Now()}:
		notificationQueueLength.Set(float64(len(w.jobs)))
		return nil
	default:
		recordNotificationSent(n.Kind, "dropped")
		return ErrQueueFull
	}
}

// Stop rejects new notifications and delivers what is already queued until
// ctx is done. On ctx expiry in-flight sends are cancelled, the remaining
// queue is abandoned and Stop returns. Retries are not scheduled once Stop
// is called.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	close(w.jobs)
	cancel := w.cancel
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("notification worker stopped")
	case <-ctx.Done():
		slog.Warn("notification worker stop deadline exceeded, abandoning queue",
			"queued", len(w.jobs),
			"error", ctx.Err(),
		)
	}
	if cancel != nil {
		cancel()
	}
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for j := range w.jobs {
		notificationQueueLength.Set(float64(len(w.jobs)))
		if ctx.Err() != nil {
			recordNotificationSent(j.notification.Kind, "abandoned")
			continue
		}
		w.process(ctx, workerID, j)
	}
}

func (w *Worker) process(ctx context.Context, workerID int, j job) {
	n := j.notification
	logger := slog.With("worker", workerID, "kind", n.Kind)

	for attempt := 1; ; attempt++ {
		err := w.send(ctx, n)
		if err != nil && ctx.Err() != nil {
			recordNotificationSent(n.Kind, "abandoned")
			logger.Warn("notification abandoned on shutdown", "attempt", attempt, "error", err)
			return
		}
		if err == nil {
			recordNotificationSent(n.Kind, "success")
			recordNotificationDuration(n.Kind, time.Since(j.enqueuedAt))
			logger.Debug("notification sent", "attempt", attempt)
			return
		}

		if !isRetryable(err) || attempt >= w.config.MaxAttempts {
			recordNotificationSent(n.Kind, "failed")
			logger.Error("notification failed", "attempt", attempt, "max_attempts", w.config.MaxAttempts, "error", err)
			return
		}

		backoff := w.calculateBackoff(attempt)
		logger.Warn("send failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		recordRetry(n.Kind)

		if !w.wait(ctx, backoff) {
			recordNotificationSent(n.Kind, "abandoned")
			logger.Warn("notification abandoned on shutdown", "attempt", attempt)
			return
		}
	}
}

func (w *Worker) send(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	defer cancel()
	return w.sender.Send(ctx, n)
}

// wait sleeps for d unless the worker stops or ctx ends first.
func (w *Worker) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// calculateBackoff returns the delay before retry number attempt (1-based).
func (w *Worker) calculateBackoff(attempt int) time.Duration {
	backoff := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= w.config.BackoffMultiplier
	}

	if backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}
