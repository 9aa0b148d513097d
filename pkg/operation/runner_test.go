package operation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestRunner(t *testing.T) {
	for _, async := range []bool{false, true} {
		name := "sync"
		if async {
			name = "async"
		}
		t.Run(name, func(t *testing.T) {
			var ran atomic.Int32
			r := NewRunner(async, 0)

			settled := r.Run(context.Background(),
				Task{Name: "fails", Run: func(ctx context.Context) error {
					ran.Add(1)
					return errors.New("boom")
				}},
				Task{Name: "panics", Run: func(ctx context.Context) error {
					ran.Add(1)
					panic("oops")
				}},
				Task{Name: "succeeds", Run: func(ctx context.Context) error {
					ran.Add(1)
					return nil
				}},
			)

			assert.Equal(t, int32(3), ran.Load(), "every task should run")
			require.Len(t, settled, 3)
			assert.Equal(t, "fails", settled[0].Name)
			assert.EqualError(t, settled[0].Err, "boom")
			assert.Contains(t, settled[1].Err.Error(), "task panics panicked: oops")
			assert.NoError(t, settled[2].Err)
		})
	}
}

func TestRunner_Concurrent(t *testing.T) {
	r := NewRunner(true, 2)

	// both tasks must be running at once for either to finish
	started := make(chan struct{}, 2)
	wait := func(ctx context.Context) error {
		started <- struct{}{}
		deadline := time.After(5 * time.Second)
		for len(started) < 2 {
			select {
			case <-deadline:
				return errors.New("peer task never started")
			case <-time.After(time.Millisecond):
			}
		}
		return nil
	}

	settled := r.Run(context.Background(), Task{Name: "a", Run: wait}, Task{Name: "b", Run: wait})
	for _, s := range settled {
		assert.NoError(t, s.Err, "task %s", s.Name)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	settled := NewRunner(true, 0).Run(ctx, Task{Name: "late", Run: func(ctx context.Context) error {
		t.Error("task should not run after cancellation")
		return nil
	}})
	require.Len(t, settled, 1)
	assert.True(t, errors.Is(settled[0].Err, context.Canceled))
}
