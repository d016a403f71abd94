package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsSubmittedWork(t *testing.T) {
	p := New("test", 2, nil)
	defer p.Shutdown()

	var n atomic.Int32
	var handles []*Handle
	for i := 0; i < 10; i++ {
		h, err := p.Submit(func(context.Context) error {
			n.Add(1)
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		require.NoError(t, h.Wait())
	}
	assert.Equal(t, int32(10), n.Load())
}

func TestWorkerPool_HandleCarriesError(t *testing.T) {
	p := New("test", 1, nil)
	defer p.Shutdown()

	boom := errors.New("boom")
	h, err := p.Submit(func(context.Context) error { return boom })
	require.NoError(t, err)
	assert.ErrorIs(t, h.Wait(), boom)
	assert.ErrorIs(t, h.Err(), boom)
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	p := New("test", 1, nil)
	defer p.Shutdown()

	h, err := p.Submit(func(context.Context) error { panic("kaboom") })
	require.NoError(t, err)
	err = h.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The worker survives the panic.
	h, err = p.Submit(func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, h.Wait())
}

func TestWorkerPool_BoundedConcurrency(t *testing.T) {
	const workers = 3
	p := New("test", workers, nil)
	defer p.Shutdown()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		_, err := p.Submit(func(context.Context) error {
			defer wg.Done()
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestWorkerPool_ShutdownDoesNotWait(t *testing.T) {
	p := New("test", 1, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	h, err := p.Submit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	queued, err := p.Submit(func(context.Context) error { return nil })
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown blocked on running work")
	}

	assert.True(t, p.Closed())
	assert.Nil(t, h.Err(), "running work is still running")

	release <- struct{}{}
	assert.NoError(t, h.Wait())
	assert.ErrorIs(t, queued.Wait(), ErrClosed)
}

func TestWorkerPool_ShutdownCancelsContext(t *testing.T) {
	p := New("test", 1, nil)

	started := make(chan struct{})
	h, err := p.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	p.Shutdown()
	assert.ErrorIs(t, h.Wait(), context.Canceled)
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	p := New("test", 1, nil)
	p.Shutdown()
	p.Shutdown()

	_, err := p.Submit(func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWorkerPool_Defaults(t *testing.T) {
	p := New("notify", 0, nil)
	defer p.Shutdown()

	assert.Equal(t, 1, p.Workers())
	assert.Equal(t, "notify", p.Name())
	assert.False(t, p.Closed())
}
