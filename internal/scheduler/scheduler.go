// Package scheduler runs the two tagged task queues (torrent, file
// download) on a single supervisor loop, promoting PENDING tasks into
// worker goroutines under a per-tag concurrency cap and collecting their
// outcome back onto that same loop.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"torrentstream/internal/domain"
	"torrentstream/internal/metrics"
)

// Handler runs one task to completion or until ctx is cancelled. A nil
// error means DONE; an error satisfying errors.Is(err, domain.ErrCancelled)
// means PAUSED; any other error means ERROR.
type Handler func(ctx context.Context, task domain.Task) error

// DefaultTick is the supervisor's promotion interval.
const DefaultTick = 500 * time.Millisecond

// DefaultConcurrency is the per-tag worker cap used when Scheduler is
// constructed without an explicit override.
const DefaultConcurrency = 5

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type workerResult struct {
	taskID string
	status domain.Status
	err    error
}

type command struct {
	fn   func()
	done chan struct{}
}

// Scheduler is not safe for concurrent use except through its exported
// methods, which hand off to the single supervisor goroutine started by
// Run. Construct with New, call Run in its own goroutine, then drive the
// rest through Enqueue/Stop/Resume/Get/Query.
type Scheduler struct {
	logger   *slog.Logger
	tick     time.Duration
	limits   map[domain.Tag]int
	handlers map[domain.Tag]Handler
	limiters map[domain.Tag]*rate.Limiter

	queues  map[domain.Tag][]domain.Task
	workers map[string]*workerHandle

	cmdCh    chan command
	resultCh chan workerResult
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithTick overrides the supervisor's promotion interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithConcurrency sets the concurrency cap for a tag.
func WithConcurrency(tag domain.Tag, max int) Option {
	return func(s *Scheduler) { s.limits[tag] = max }
}

// WithRateLimit smooths promotion for a tag with a token-bucket limiter:
// at most r promotions per second, bursting up to b.
func WithRateLimit(tag domain.Tag, r rate.Limit, b int) Option {
	return func(s *Scheduler) { s.limiters[tag] = rate.NewLimiter(r, b) }
}

// New constructs a Scheduler. handlers must have one entry per tag that
// will ever be enqueued; a task whose tag has no handler is logged as an
// error on each promotion attempt and stays PENDING.
func New(logger *slog.Logger, handlers map[domain.Tag]Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:   logger,
		tick:     DefaultTick,
		limits:   map[domain.Tag]int{domain.TagTorrent: DefaultConcurrency, domain.TagFileDownload: DefaultConcurrency},
		handlers: handlers,
		limiters: map[domain.Tag]*rate.Limiter{},
		queues:   map[domain.Tag][]domain.Task{},
		workers:  map[string]*workerHandle{},
		cmdCh:    make(chan command),
		resultCh: make(chan workerResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run is the supervisor loop. It blocks until ctx is cancelled, at which
// point it cancels every live worker and returns once they have all
// reported back; there is no timeout on that wait.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case cmd := <-s.cmdCh:
			cmd.fn()
			close(cmd.done)
		case res := <-s.resultCh:
			s.handleResult(res)
		case <-ticker.C:
			s.promote(ctx)
			s.reportMetrics()
		}
	}
}

func (s *Scheduler) shutdown() {
	for _, w := range s.workers {
		w.cancel()
	}
	for _, w := range s.workers {
		<-w.done
	}
}

// submit hands fn off to the supervisor goroutine and blocks until it has
// run. Safe to call from any goroutine other than the supervisor's own:
// calling submit from inside fn would deadlock.
func (s *Scheduler) submit(fn func()) {
	done := make(chan struct{})
	s.cmdCh <- command{fn: fn, done: done}
	<-done
}

// Enqueue appends task to its tag's queue in PENDING state, to be
// promoted on a future tick.
func (s *Scheduler) Enqueue(task domain.Task) {
	s.submit(func() {
		tag := task.GetTag()
		s.queues[tag] = append(s.queues[tag], task)
	})
}

// Get returns the task with the given id, if any queue holds it.
func (s *Scheduler) Get(id string) (domain.Task, bool) {
	var found domain.Task
	var ok bool
	s.submit(func() {
		for _, q := range s.queues {
			for _, t := range q {
				if t.GetID() == id {
					found, ok = t, true
					return
				}
			}
		}
	})
	return found, ok
}

// Query returns every task matching filter, in each tag queue's insertion
// order (torrent queue first, then file-download).
func (s *Scheduler) Query(filter domain.TaskFilter) []domain.Task {
	var out []domain.Task
	s.submit(func() {
		for _, tag := range []domain.Tag{domain.TagTorrent, domain.TagFileDownload} {
			for _, t := range s.queues[tag] {
				if filter.Matches(t.GetTag(), t.GetStatus()) {
					out = append(out, t)
				}
			}
		}
	})
	return out
}

// Stop requests cancellation of a running task, or directly pauses a
// pending one before it ever starts. Idempotent; a no-op for tasks that
// are already DONE, ERROR, or PAUSED.
func (s *Scheduler) Stop(taskID string) {
	s.submit(func() {
		if w, ok := s.workers[taskID]; ok {
			w.cancel()
			return
		}
		for _, q := range s.queues {
			for _, t := range q {
				if t.GetID() == taskID && t.GetStatus() == domain.StatusPending {
					t.SetStatus(domain.StatusPaused)
					return
				}
			}
		}
	})
}

// Resume sets a PAUSED or ERROR task back to PENDING so the next tick
// re-promotes it. No-op for any other status.
func (s *Scheduler) Resume(taskID string) {
	s.submit(func() {
		for _, q := range s.queues {
			for _, t := range q {
				if t.GetID() == taskID && domain.CanResume(t.GetStatus()) {
					t.SetStatus(domain.StatusPending)
					return
				}
			}
		}
	})
}

// Snapshot returns every task across both queues, in insertion order, for
// the persistence layer to serialize. Callers must not mutate the
// returned tasks' transient scheduling state (a RUNNING task is still
// live here) — persistence does the RUNNING→PENDING coercion itself.
func (s *Scheduler) Snapshot() (torrent, fileDownload []domain.Task) {
	s.submit(func() {
		torrent = append([]domain.Task(nil), s.queues[domain.TagTorrent]...)
		fileDownload = append([]domain.Task(nil), s.queues[domain.TagFileDownload]...)
	})
	return
}

// Load replaces the current queues wholesale. Intended to be called once,
// before Run, with tasks already coerced (RUNNING→PENDING, transients
// cleared) by the caller per the persistence contract.
func (s *Scheduler) Load(torrent, fileDownload []domain.Task) {
	s.queues[domain.TagTorrent] = torrent
	s.queues[domain.TagFileDownload] = fileDownload
}

func (s *Scheduler) promote(ctx context.Context) {
	for tag, queue := range s.queues {
		limit := s.limits[tag]
		running := s.runningCount(tag)
		for _, t := range queue {
			if running >= limit {
				break
			}
			if t.GetStatus() != domain.StatusPending {
				continue
			}
			if _, live := s.workers[t.GetID()]; live {
				continue
			}
			if limiter, ok := s.limiters[tag]; ok && !limiter.Allow() {
				break
			}
			s.spawn(ctx, t)
			running++
		}
	}
}

func (s *Scheduler) runningCount(tag domain.Tag) int {
	n := 0
	for _, q := range s.queues[tag] {
		if _, live := s.workers[q.GetID()]; live {
			n++
		}
	}
	return n
}

func (s *Scheduler) spawn(ctx context.Context, t domain.Task) {
	handler, ok := s.handlers[t.GetTag()]
	if !ok {
		s.logger.Error("scheduler: no handler registered for tag", slog.String("tag", string(t.GetTag())))
		return
	}

	t.SetStatus(domain.StatusRunning)
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.workers[t.GetID()] = &workerHandle{cancel: cancel, done: done}

	go func() {
		defer close(done)
		err := handler(workerCtx, t)

		result := workerResult{taskID: t.GetID()}
		switch {
		case err == nil:
			result.status = domain.StatusDone
		case errors.Is(err, domain.ErrCancelled):
			result.status = domain.StatusPaused
		default:
			result.status = domain.StatusError
			result.err = err
		}

		select {
		case s.resultCh <- result:
		case <-ctx.Done():
		}
	}()
}

func (s *Scheduler) handleResult(res workerResult) {
	if w, ok := s.workers[res.taskID]; ok {
		w.cancel()
		delete(s.workers, res.taskID)
	}
	for tag, q := range s.queues {
		for _, t := range q {
			if t.GetID() == res.taskID {
				t.SetStatus(res.status)
				metrics.SchedulerTaskOutcomesTotal.WithLabelValues(string(tag), string(res.status)).Inc()
			}
		}
	}
	if res.err != nil {
		s.logger.Warn("scheduler: task failed",
			slog.String("taskId", res.taskID),
			slog.String("error", res.err.Error()),
		)
	}
}

func (s *Scheduler) reportMetrics() {
	for _, tag := range []domain.Tag{domain.TagTorrent, domain.TagFileDownload} {
		running := 0
		pending := 0
		for _, t := range s.queues[tag] {
			switch t.GetStatus() {
			case domain.StatusRunning:
				running++
			case domain.StatusPending:
				pending++
			}
		}
		metrics.SchedulerRunningTasks.WithLabelValues(string(tag)).Set(float64(running))
		metrics.SchedulerPendingTasks.WithLabelValues(string(tag)).Set(float64(pending))
	}
}
