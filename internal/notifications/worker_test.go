package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records deliveries and fails according to script.
type fakeSender struct {
	mu     sync.Mutex
	sent   []Notification
	calls  int
	script []error
	delay  time.Duration
}

func (f *fakeSender) Send(ctx context.Context, n Notification) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.script) > 0 {
		err := f.script[0]
		f.script = f.script[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) snapshot() (calls int, sent []Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]Notification(nil), f.sent...)
}

func fastConfig() WorkerConfig {
	return WorkerConfig{
		QueueSize:         8,
		NumWorkers:        2,
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		SendTimeout:       time.Second,
	}
}

func TestWorker_CalculateBackoff(t *testing.T) {
	worker := &Worker{config: WorkerConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{"first retry", 1, 1 * time.Second},
		{"second retry", 2, 2 * time.Second},
		{"third retry", 3, 4 * time.Second},
		{"fourth retry", 4, 8 * time.Second},
		{"capped", 5, 10 * time.Second},
		{"far past cap", 100, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, worker.calculateBackoff(tt.attempt))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(Transient(errors.New("421 try later"))))
	assert.True(t, isRetryable(ErrTransientFailure))
	assert.False(t, isRetryable(errors.New("550 no such mailbox")))
	assert.Nil(t, Transient(nil))
}

func TestWorker_DeliversQueued(t *testing.T) {
	sender := &fakeSender{}
	worker := NewWorker(fastConfig(), sender)
	worker.Start(context.Background())

	for _, to := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, worker.Enqueue(Notification{To: to, Kind: KindWelcome}))
	}
	worker.Stop(context.Background())

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com", "c@x.com"}, recipients(sent))
}

func TestWorker_RetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{script: []error{Transient(errors.New("timeout")), Transient(errors.New("timeout"))}}
	config := fastConfig()
	config.NumWorkers = 1
	worker := NewWorker(config, sender)
	worker.Start(context.Background())

	require.NoError(t, worker.Enqueue(Notification{To: "a@x.com", Kind: KindWelcome}))

	require.Eventually(t, func() bool {
		_, sent := sender.snapshot()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)
	worker.Stop(context.Background())

	calls, _ := sender.snapshot()
	assert.Equal(t, 3, calls)
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	transient := Transient(errors.New("timeout"))
	sender := &fakeSender{script: []error{transient, transient, transient, transient}}
	config := fastConfig()
	config.NumWorkers = 1
	worker := NewWorker(config, sender)
	worker.Start(context.Background())

	require.NoError(t, worker.Enqueue(Notification{To: "a@x.com"}))
	require.Eventually(t, func() bool {
		calls, _ := sender.snapshot()
		return calls == config.MaxAttempts
	}, time.Second, 5*time.Millisecond)
	worker.Stop(context.Background())

	calls, sent := sender.snapshot()
	assert.Equal(t, config.MaxAttempts, calls)
	assert.Empty(t, sent)
}

func TestWorker_PermanentFailureIsNotRetried(t *testing.T) {
	sender := &fakeSender{script: []error{errors.New("550 mailbox not found")}}
	worker := NewWorker(fastConfig(), sender)
	worker.Start(context.Background())

	require.NoError(t, worker.Enqueue(Notification{To: "a@x.com"}))
	worker.Stop(context.Background())

	calls, sent := sender.snapshot()
	assert.Equal(t, 1, calls)
	assert.Empty(t, sent)
}

func TestWorker_EnqueueNeverBlocks(t *testing.T) {
	sender := &fakeSender{delay: 50 * time.Millisecond}
	config := fastConfig()
	config.QueueSize = 1
	config.NumWorkers = 1
	worker := NewWorker(config, sender)

	// Not started: the buffer fills up immediately.
	require.NoError(t, worker.Enqueue(Notification{To: "a@x.com"}))

	start := time.Now()
	err := worker.Enqueue(Notification{To: "b@x.com"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 20*time.Millisecond)

	worker.Start(context.Background())
	worker.Stop(context.Background())
	_, sent := sender.snapshot()
	assert.Equal(t, []string{"a@x.com"}, recipients(sent))
}

func TestWorker_EnqueueAfterStop(t *testing.T) {
	worker := NewWorker(fastConfig(), &fakeSender{})
	worker.Start(context.Background())
	worker.Stop(context.Background())
	worker.Stop(context.Background())

	assert.ErrorIs(t, worker.Enqueue(Notification{To: "a@x.com"}), ErrQueueStopped)
}

func TestDefaultWorkerConfig(t *testing.T) {
	config := DefaultWorkerConfig()

	assert.Equal(t, 256, config.QueueSize)
	assert.Equal(t, 2, config.NumWorkers)
	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 1*time.Second, config.InitialBackoff)
	assert.Equal(t, 1*time.Minute, config.MaxBackoff)
	assert.Equal(t, 2.0, config.BackoffMultiplier)
	assert.Equal(t, WorkerConfig{}.withDefaults(), config)
}

func recipients(ns []Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.To)
	}
	return out
}

// blockingSender blocks every send until its context is cancelled.
type blockingSender struct {
	mu      sync.Mutex
	started int
}

func (b *blockingSender) Send(ctx context.Context, _ Notification) error {
	b.mu.Lock()
	b.started++
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func TestWorker_StopHonorsDeadline(t *testing.T) {
	sender := &blockingSender{}
	config := fastConfig()
	config.NumWorkers = 1
	config.SendTimeout = 10 * time.Second
	worker := NewWorker(config, sender)
	worker.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, worker.Enqueue(Notification{To: "a@x.com"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	worker.Stop(ctx)
	assert.Less(t, time.Since(start), time.Second)

	// In-flight and queued deliveries are abandoned rather than attempted.
	done := make(chan struct{})
	go func() {
		worker.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after the stop deadline")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 1, sender.started)
}
