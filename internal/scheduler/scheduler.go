// Package scheduler periodically evaluates due dates and reminders of active
// entries and reports the ones that came due since the previous check.
//
// Each kind has its own loop; all loops and one-off follow-ups share a fixed
// number of worker slots. The instant of the last completed check is kept in
// the metadata table, so restarting the process does not repeat
// notifications.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/toastit/internal/logging"
	"github.com/dmitrijs2005/toastit/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Source lists the stubs a loop evaluates. horizon bounds how far ahead
// event sources look; zero means no bound.
type Source interface {
	Kind() models.Kind
	Upcoming(ctx context.Context, horizon time.Time) ([]models.Stub, error)
}

// Purger deletes entries that ended before cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, kind models.Kind, id, message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, kind models.Kind, id, message string)

func (f SinkFunc) Notify(ctx context.Context, kind models.Kind, id, message string) {
	f(ctx, kind, id, message)
}

// Watermarks persists the last checked instant per kind.
type Watermarks interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Job is one periodic loop.
type Job struct {
	Source   Source
	Interval time.Duration
	// LookForward widens the source query past now (events).
	LookForward time.Duration
	// Purger, when set, runs after every tick with cutoff now-Retention.
	Purger    Purger
	Retention time.Duration
}

type Scheduler struct {
	sem   *semaphore.Weighted
	sink  Sink
	marks Watermarks
	log   logging.Logger
	now   func() time.Time

	jobs []Job

	mu    sync.Mutex
	kinds map[models.Kind]*sync.Mutex

	pending sync.WaitGroup
}

// New returns a scheduler running at most threads ticks at a time.
func New(threads int, sink Sink, marks Watermarks, log logging.Logger) *Scheduler {
	if threads < 1 {
		threads = 1
	}
	return &Scheduler{
		sem:   semaphore.NewWeighted(int64(threads)),
		sink:  sink,
		marks: marks,
		log:   log,
		now:   time.Now,
		kinds: make(map[models.Kind]*sync.Mutex),
	}
}

// Add registers a loop. It must be called before Run.
func (s *Scheduler) Add(j Job) *Scheduler {
	s.jobs = append(s.jobs, j)
	return s
}

// Run ticks every job until ctx is cancelled. The first tick of each job
// happens immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.jobs {
		if j.Interval <= 0 {
			return fmt.Errorf("scheduler: %s interval must be positive", j.Source.Kind())
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, j)
			return nil
		})
	}
	err := g.Wait()
	s.pending.Wait()
	return err
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		s.runTick(ctx, j)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, j Job) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	if err := s.Tick(ctx, j); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error(ctx, "scheduler tick failed", "kind", string(j.Source.Kind()), "error", err)
	}
}

// After runs fn once after d on a worker slot, unless ctx ends first.
func (s *Scheduler) After(ctx context.Context, d time.Duration, fn func(context.Context)) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		fn(ctx)
	}()
}

// Recheck ticks the job for kind once after d, e.g. right after a newly
// started task becomes due.
func (s *Scheduler) Recheck(ctx context.Context, kind models.Kind, d time.Duration) bool {
	for _, j := range s.jobs {
		if j.Source.Kind() != kind {
			continue
		}
		s.After(ctx, d, func(ctx context.Context) {
			if err := s.Tick(ctx, j); err != nil {
				s.log.Error(ctx, "scheduler recheck failed", "kind", string(kind), "error", err)
			}
		})
		return true
	}
	return false
}

func (s *Scheduler) kindLock(k models.Kind) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.kinds[k]
	if !ok {
		l = &sync.Mutex{}
		s.kinds[k] = l
	}
	return l
}

func watermarkKey(k models.Kind) string {
	return "scheduler.watermark." + string(k)
}

func (s *Scheduler) watermark(ctx context.Context, k models.Kind, fallback time.Time) (time.Time, error) {
	v, ok, err := s.marks.Get(ctx, watermarkKey(k))
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return fallback, nil
	}
	ns, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.log.Warn(ctx, "ignoring malformed watermark", "kind", string(k), "value", v)
		return fallback, nil
	}
	return time.Unix(0, ns), nil
}

// Tick evaluates one job at the current time. Everything whose trigger lies
// in (watermark, now] is notified, then the watermark moves to now.
func (s *Scheduler) Tick(ctx context.Context, j Job) error {
	kind := j.Source.Kind()
	l := s.kindLock(kind)
	l.Lock()
	defer l.Unlock()

	now := s.now()
	since, err := s.watermark(ctx, kind, now.Add(-j.Interval))
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}

	var horizon time.Time
	if j.LookForward > 0 {
		horizon = now.Add(j.LookForward)
	}
	stubs, err := j.Source.Upcoming(ctx, horizon)
	if err != nil {
		return fmt.Errorf("list %s: %w", kind, err)
	}

	fired := 0
	for _, st := range stubs {
		if st.Done() {
			continue
		}
		fired += s.evaluate(ctx, st, since, now, j.Interval)
	}
	s.log.Debug(ctx, "scheduler tick", "kind", string(kind), "entries", len(stubs), "fired", fired)

	if j.Purger != nil && j.Retention > 0 {
		if _, err := j.Purger.Purge(ctx, now.Add(-j.Retention)); err != nil {
			return fmt.Errorf("purge %s: %w", kind, err)
		}
	}

	if now.After(since) {
		if err := s.marks.Set(ctx, watermarkKey(kind), strconv.FormatInt(now.UnixNano(), 10)); err != nil {
			return fmt.Errorf("save watermark: %w", err)
		}
	}
	return nil
}

func within(t, since, now time.Time) bool {
	return t.After(since) && !t.After(now)
}

func (s *Scheduler) evaluate(ctx context.Context, st models.Stub, since, now time.Time, interval time.Duration) int {
	fired := 0
	ref := st.When()

	for _, r := range st.ReminderList() {
		at, ok := r.Trigger(ref)
		if !ok || !within(at, since, now) {
			continue
		}
		s.sink.Notify(ctx, st.EntryKind(), st.Key(), fmt.Sprintf("reminder: %s (%s)", st.Title(), r))
		fired++
	}

	if !ref.IsZero() && within(ref, since, now) {
		s.sink.Notify(ctx, st.EntryKind(), st.Key(), dueMessage(st, ref, now, interval))
		fired++
	}
	return fired
}

func dueMessage(st models.Stub, ref, now time.Time, interval time.Duration) string {
	verb := "due"
	if st.EntryKind() == models.KindEvent {
		verb = "starting"
	}
	if now.Sub(ref) > interval {
		return fmt.Sprintf("overdue: %s (was %s %s)", st.Title(), verb, ref.Format(time.DateTime))
	}
	return fmt.Sprintf("%s: %s at %s", verb, st.Title(), ref.Format(time.Kitchen))
}

// LogSink writes notifications to a logger.
func LogSink(log logging.Logger) Sink {
	return SinkFunc(func(ctx context.Context, kind models.Kind, id, message string) {
		log.Info(ctx, message, "kind", string(kind), "id", id)
	})
}
