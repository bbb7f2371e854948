package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealtimeScheduler_CallbackRunsOnLoop(t *testing.T) {
	l := NewLoop()
	stop := startLoop(t, l)
	defer stop()

	s := NewRealtimeScheduler(l)
	fired := make(chan time.Duration, 1)
	s.AfterFunc(10*time.Millisecond, func() { fired <- s.Now() })

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at, 10*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}
}

func TestRealtimeScheduler_StopPreventsCallback(t *testing.T) {
	l := NewLoop()
	stop := startLoop(t, l)
	defer stop()

	s := NewRealtimeScheduler(l)
	ran := false

	var timer Timer
	require.NoError(t, l.Do(context.Background(), func() {
		timer = s.AfterFunc(20*time.Millisecond, func() { ran = true })
	}))

	var stopped bool
	require.NoError(t, l.Do(context.Background(), func() { stopped = timer.Stop() }))
	assert.True(t, stopped)

	time.Sleep(60 * time.Millisecond)

	var sawRun bool
	require.NoError(t, l.Do(context.Background(), func() { sawRun = ran }))
	assert.False(t, sawRun)
}

func TestRealtimeScheduler_StopAfterExpiryBeforeDelivery(t *testing.T) {
	l := NewLoop() // not running yet: expiry can only enqueue

	s := NewRealtimeScheduler(l)
	ran := false
	timer := s.AfterFunc(time.Millisecond, func() { ran = true })

	time.Sleep(20 * time.Millisecond) // wall-clock timer has expired and enqueued
	assert.True(t, timer.Stop(), "Stop wins while the task is still queued")

	l.Stop()
	require.NoError(t, l.Run(context.Background()))
	assert.False(t, ran)
}
