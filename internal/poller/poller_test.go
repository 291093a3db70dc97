package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

func TestLoopTicksOnPeriod(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)
	defer p.Close()

	var n atomic.Int32
	p.Start("TRAINING", 500*time.Millisecond, func(context.Context) { n.Add(1) })

	mock.Add(499 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load())

	mock.Add(1 * time.Millisecond)
	require.Eventually(t, func() bool { return n.Load() == 1 }, wait, time.Millisecond)

	mock.Add(500 * time.Millisecond)
	require.Eventually(t, func() bool { return n.Load() == 2 }, wait, time.Millisecond)
}

func TestBusyTickIsSkippedNotQueued(t *testing.T) {
	mock := clock.NewMock()
	var skipped atomic.Int32
	p := New(mock, WithSkipHook(func(string) { skipped.Add(1) }))
	defer p.Close()

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var n atomic.Int32
	p.Start("TRADING", time.Second, func(context.Context) {
		n.Add(1)
		started <- struct{}{}
		<-release
	})

	mock.Add(time.Second)
	<-started
	require.True(t, p.Busy("TRADING"))

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return skipped.Load() == 1 }, wait, time.Millisecond)
	mock.Add(time.Second)
	require.Eventually(t, func() bool { return skipped.Load() == 2 }, wait, time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return !p.Busy("TRADING") }, wait, time.Millisecond)
	assert.Equal(t, int32(1), n.Load())

	mock.Add(time.Second)
	<-started
	assert.Equal(t, int32(2), n.Load())
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)
	defer p.Close()

	var n atomic.Int32
	p.Start("TRAINING", 500*time.Millisecond, func(context.Context) { n.Add(1) })
	require.True(t, p.Running("TRAINING"))

	p.Stop("TRAINING")
	assert.False(t, p.Running("TRAINING"))

	mock.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load())
}

func TestStopFromInsideTick(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)
	defer p.Close()

	stopped := make(chan struct{})
	p.Start("TRAINING", time.Second, func(ctx context.Context) {
		p.Stop("TRAINING")
		assert.Error(t, ctx.Err())
		close(stopped)
	})

	mock.Add(time.Second)
	select {
	case <-stopped:
	case <-time.After(wait):
		t.Fatal("tick did not finish")
	}
	assert.False(t, p.Running("TRAINING"))
}

func TestRestartReplacesLoop(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)
	defer p.Close()

	var a, b atomic.Int32
	p.Start("MARKET", time.Second, func(context.Context) { a.Add(1) })
	p.Start("MARKET", time.Second, func(context.Context) { b.Add(1) })

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return b.Load() == 1 }, wait, time.Millisecond)
	assert.Equal(t, int32(0), a.Load())
}

func TestCloseWaitsForInflightTick(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock)

	started := make(chan struct{})
	var finished atomic.Bool
	p.Start("TRADING", time.Second, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		finished.Store(true)
	})
	mock.Add(time.Second)
	<-started

	p.Close()
	assert.True(t, finished.Load())

	p.Start("TRADING", time.Second, func(context.Context) {})
	assert.False(t, p.Running("TRADING"))
}
