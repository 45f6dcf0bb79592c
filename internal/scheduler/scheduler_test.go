package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"price_tracker/internal/pricecheck"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	runs     atomic.Int32
	busy     atomic.Bool
	err      error
	hold     chan struct{}
	finished chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (pricecheck.Summary, error) {
	f.busy.Store(true)
	defer f.busy.Store(false)

	f.runs.Add(1)
	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
		}
	}
	if f.finished != nil {
		defer func() { f.finished <- struct{}{} }()
	}

	return pricecheck.Summary{Total: 2, Updated: 2}, f.err
}

func (f *fakeRunner) InProgress() bool {
	return f.busy.Load()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDailyAt(t *testing.T) {
	loc := time.UTC
	next := dailyAt(9, 30)

	assert.Equal(t,
		time.Date(2024, 3, 10, 9, 30, 0, 0, loc),
		next(time.Date(2024, 3, 10, 8, 0, 0, 0, loc)))

	assert.Equal(t,
		time.Date(2024, 3, 11, 9, 30, 0, 0, loc),
		next(time.Date(2024, 3, 10, 9, 30, 0, 0, loc)))

	assert.Equal(t,
		time.Date(2025, 1, 1, 9, 30, 0, 0, loc),
		next(time.Date(2024, 12, 31, 22, 0, 0, 0, loc)))
}

func TestNewRejectsBadDailyTime(t *testing.T) {
	_, err := New(discardLogger(), &fakeRunner{}, Config{DailyAt: []string{"25:00"}})
	assert.Error(t, err)
}

func TestTakeDue(t *testing.T) {
	s, err := New(discardLogger(), &fakeRunner{}, Config{
		Every:   time.Hour,
		DailyAt: []string{"09:00"},
	})
	require.NoError(t, err)

	start := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	for _, j := range s.jobs {
		j.due = j.next(start)
	}

	_, ok := s.takeDue(start.Add(10 * time.Minute))
	assert.False(t, ok)

	// both jobs fall due in the same poll and produce one sweep
	name, ok := s.takeDue(start.Add(time.Hour))
	assert.True(t, ok)
	assert.Equal(t, "every 1h0m0s", name)

	assert.Equal(t, start.Add(2*time.Hour), s.jobs[0].due)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), s.jobs[1].due)

	_, ok = s.takeDue(start.Add(time.Hour + time.Minute))
	assert.False(t, ok)
}

// startScheduler runs s until the test ends.
func startScheduler(t *testing.T, s *Scheduler) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return s.Status().Running }, time.Second, 5*time.Millisecond)

	return cancel
}

func TestTriggerMergesIntoRunningSweep(t *testing.T) {
	r := &fakeRunner{hold: make(chan struct{}), finished: make(chan struct{}, 1)}

	s, err := New(discardLogger(), r, Config{})
	require.NoError(t, err)
	startScheduler(t, s)

	require.NoError(t, s.Trigger())
	require.Eventually(t, r.InProgress, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Trigger(), ErrSweepInProgress)
	assert.True(t, s.Status().InProgress)

	close(r.hold)
	<-r.finished
	require.Eventually(t, func() bool { return s.Status().LastFinish != nil }, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), r.runs.Load())

	st := s.Status()
	assert.False(t, st.InProgress)
	require.NotNil(t, st.LastSummary)
	assert.Equal(t, 2, st.LastSummary.Updated)
	assert.NotNil(t, st.LastStart)
	assert.Empty(t, st.LastError)
}

func TestTriggerRefusedWhenStopped(t *testing.T) {
	r := &fakeRunner{}

	s, err := New(discardLogger(), r, Config{})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Trigger(), ErrStopped)

	cancel := startScheduler(t, s)
	cancel()
	require.Eventually(t, func() bool { return !s.Status().Running }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Trigger(), ErrStopped)
	assert.Equal(t, int32(0), r.runs.Load())
}

func TestRunWaitsForManualSweep(t *testing.T) {
	r := &fakeRunner{hold: make(chan struct{}), finished: make(chan struct{}, 1)}

	s, err := New(discardLogger(), r, Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	require.Eventually(t, func() bool { return s.Status().Running }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Trigger())
	require.Eventually(t, r.InProgress, time.Second, 5*time.Millisecond)

	// the held sweep returns once ctx is cancelled; Run waits for it
	cancel()
	<-done
	<-r.finished

	assert.NotNil(t, s.Status().LastFinish)
}

func TestStatusRecordsSweepError(t *testing.T) {
	r := &fakeRunner{err: errors.New("storage.sqlite.UpdatePrice: database is locked")}

	s, err := New(discardLogger(), r, Config{})
	require.NoError(t, err)

	s.sweep(context.Background(), "test")

	assert.Equal(t, "storage.sqlite.UpdatePrice: database is locked", s.Status().LastError)
}

func TestRunSchedulesSweeps(t *testing.T) {
	r := &fakeRunner{}

	s, err := New(discardLogger(), r, Config{
		PollInterval: 10 * time.Millisecond,
		Every:        20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return r.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	st := s.Status()
	assert.True(t, st.Running)
	assert.NotNil(t, st.NextRun)

	cancel()
	<-done

	assert.False(t, s.Status().Running)
	assert.Nil(t, s.Status().NextRun)
}
