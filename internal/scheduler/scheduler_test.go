package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsBadExpression(t *testing.T) {
	t.Parallel()
	_, err := New("not a cron", func(context.Context) error { return nil }, zap.NewNop())
	require.Error(t, err)
}

func TestCycleObservesRunContext(t *testing.T) {
	t.Parallel()
	got := make(chan context.Context, 1)
	s, err := New("@every 100ms", func(ctx context.Context) error {
		select {
		case got <- ctx:
		default:
		}
		return nil
	}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	var cycleCtx context.Context
	select {
	case cycleCtx = <-got:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("cycle was never invoked")
	}
	require.NoError(t, cycleCtx.Err())

	// Shutting the scheduler down must cancel the context handed to cycles
	// so an in-flight crawl aborts with its checkpoint instead of running
	// out the soft deadline.
	cancel()
	select {
	case <-cycleCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("run cancellation did not reach the cycle context")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	s, err := New("0 0 * * 1", func(context.Context) error { return nil }, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
