package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/pricecheck"
)

var (
	ErrSweepInProgress = errors.New("sweep already in progress")
	ErrStopped         = errors.New("scheduler is not running")
)

type Runner interface {
	Run(ctx context.Context) (pricecheck.Summary, error)
	InProgress() bool
}

type Config struct {
	// PollInterval is how often due jobs are looked for.
	PollInterval time.Duration
	// Every schedules a sweep at a fixed interval; zero disables it.
	Every time.Duration
	// DailyAt lists local wall-clock times in "15:04" form.
	DailyAt []string
}

type job struct {
	name string
	next func(after time.Time) time.Time
	due  time.Time
}

type Status struct {
	Running     bool                `json:"running"`
	InProgress  bool                `json:"sweep_in_progress"`
	LastStart   *time.Time          `json:"last_start,omitempty"`
	LastFinish  *time.Time          `json:"last_finish,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
	LastSummary *pricecheck.Summary `json:"last_summary,omitempty"`
	NextRun     *time.Time          `json:"next_run,omitempty"`
}

// Scheduler runs sweeps on a recurring cadence and on demand. Scheduled sweeps
// run on the polling goroutine, so a slow sweep delays the next poll rather
// than overlapping it.
type Scheduler struct {
	log    *slog.Logger
	runner Runner
	poll   time.Duration
	jobs   []*job
	now    func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	running bool
	status  Status

	wg sync.WaitGroup
}

func New(log *slog.Logger, runner Runner, cfg Config) (*Scheduler, error) {
	const op = "scheduler.New"

	s := &Scheduler{
		log:    log.With(slog.String("component", "scheduler")),
		runner: runner,
		poll:   cfg.PollInterval,
		now:    time.Now,
	}

	if s.poll <= 0 {
		s.poll = time.Minute
	}

	if cfg.Every > 0 {
		every := cfg.Every
		s.jobs = append(s.jobs, &job{
			name: "every " + every.String(),
			next: func(after time.Time) time.Time { return after.Add(every) },
		})
	}

	for _, at := range cfg.DailyAt {
		clock, err := time.Parse("15:04", at)
		if err != nil {
			return nil, fmt.Errorf("%s: daily time %q: %w", op, at, err)
		}

		s.jobs = append(s.jobs, &job{
			name: "daily at " + at,
			next: dailyAt(clock.Hour(), clock.Minute()),
		})
	}

	return s, nil
}

// dailyAt returns the first h:m wall-clock instant strictly after a given time.
func dailyAt(h, m int) func(time.Time) time.Time {
	return func(after time.Time) time.Time {
		y, mo, d := after.Date()
		t := time.Date(y, mo, d, h, m, 0, 0, after.Location())
		if !t.After(after) {
			t = time.Date(y, mo, d+1, h, m, 0, 0, after.Location())
		}
		return t
	}
}

// Run polls for due jobs until ctx is done. Manual sweeps started with
// Trigger use ctx as well.
func (s *Scheduler) Run(ctx context.Context) {
	const op = "scheduler.Run"

	log := s.log.With(slog.String("op", op))

	now := s.now()

	s.mu.Lock()
	s.ctx = ctx
	s.running = true
	for _, j := range s.jobs {
		j.due = j.next(now)
	}
	s.mu.Unlock()

	log.Info("scheduler started", slog.Int("jobs", len(s.jobs)), slog.Duration("poll", s.poll))

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()

			s.wg.Wait()
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			if name, ok := s.takeDue(s.now()); ok {
				s.sweep(ctx, name)
			}
		}
	}
}

// takeDue advances every job that is due at now and reports whether any was.
// Several jobs falling due in one poll produce a single sweep.
func (s *Scheduler) takeDue(now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var name string
	for _, j := range s.jobs {
		if now.Before(j.due) {
			continue
		}
		if name == "" {
			name = j.name
		}
		j.due = j.next(now)
	}

	return name, name != ""
}

// Trigger starts a sweep in the background on the context Run was given. It
// returns ErrSweepInProgress when a sweep is already running, which covers the
// request, and ErrStopped once Run has returned or before it starts.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrStopped
	}
	if s.runner.InProgress() {
		return ErrSweepInProgress
	}

	ctx := s.ctx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx, "manual")
	}()

	return nil
}

func (s *Scheduler) sweep(ctx context.Context, trigger string) {
	const op = "scheduler.sweep"

	log := s.log.With(slog.String("op", op), slog.String("trigger", trigger))

	start := s.now()

	s.mu.Lock()
	s.status.LastStart = &start
	s.mu.Unlock()

	sum, err := s.runner.Run(ctx)

	finish := s.now()

	s.mu.Lock()
	s.status.LastFinish = &finish
	s.status.LastSummary = &sum
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		log.Error("sweep failed", sl.Err(err))
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.Running = s.running
	st.InProgress = s.runner.InProgress()

	if s.running {
		for _, j := range s.jobs {
			if st.NextRun == nil || j.due.Before(*st.NextRun) {
				due := j.due
				st.NextRun = &due
			}
		}
	}

	return st
}
