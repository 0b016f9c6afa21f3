package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	called  chan struct{}
}

func (p *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	p.cutoffs = append(p.cutoffs, cutoff)
	p.mu.Unlock()
	select {
	case p.called <- struct{}{}:
	default:
	}
	return 2, p.err
}

func (p *fakePruner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestRetentionWorker_SweepsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &fakePruner{called: make(chan struct{}, 8)}
	w := NewRetentionWorker(p, 24*time.Hour, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-p.called:
		case <-time.After(2 * time.Second):
			t.Fatal("retention worker did not sweep")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retention worker did not stop")
	}

	require.GreaterOrEqual(t, p.calls(), 3)
	p.mu.Lock()
	assert.Equal(t, fixed.Add(-24*time.Hour), p.cutoffs[0])
	p.mu.Unlock()
}

func TestRetentionWorker_ErrorsDoNotStopWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &fakePruner{called: make(chan struct{}, 8), err: errors.New("disk full")}
	w := NewRetentionWorker(p, time.Hour, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	<-p.called
	<-p.called
	cancel()
	assert.NoError(t, <-done)
}

func TestNewRetentionWorker_DefaultInterval(t *testing.T) {
	w := NewRetentionWorker(&fakePruner{}, time.Hour, 0, nil)
	assert.Equal(t, DefaultRetentionInterval, w.interval)
}
