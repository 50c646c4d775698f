// Package scheduler runs pipeline jobs on a cron cadence and on demand,
// never letting two runs of the same job overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/core/ports"
	"github.com/samirrijal/placekeeper/internal/pkg/logging"
	"github.com/samirrijal/placekeeper/internal/pkg/metrics"
	"github.com/samirrijal/placekeeper/internal/pkg/telemetry"
)

// Trigger sources recorded on each run.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerCLI      = "cli"
	TriggerHTTP     = "http"
	TriggerNATS     = "nats"
)

// ErrStopped is returned by Trigger after Stop.
var ErrStopped = errors.New("scheduler stopped")

// JobFunc executes one run of a job and returns a summary for the run record.
type JobFunc func(ctx context.Context) (any, error)

type job struct {
	name string
	spec string
	fn   JobFunc

	running sync.Mutex
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string         `json:"name"`
	Spec    string         `json:"schedule,omitempty"`
	Next    *time.Time     `json:"next_run,omitempty"`
	Running bool           `json:"running"`
	LastRun *domain.JobRun `json:"last_run,omitempty"`
}

// Scheduler owns the cron loop and the per-job guards.
type Scheduler struct {
	cron    *cron.Cron
	lock    ports.JobLock
	lockTTL time.Duration
	events  ports.EventPublisher
	now     func() time.Time

	mu       sync.RWMutex
	jobs     map[string]*job
	last     map[string]domain.JobRun
	inFlight map[string]bool
	baseCtx  context.Context
	stopped  bool

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLock adds a cross-process lock held for the duration of each run.
func WithLock(lock ports.JobLock, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.lock = lock
		s.lockTTL = ttl
	}
}

// WithEvents publishes a completion event after every run.
func WithEvents(pub ports.EventPublisher) Option {
	return func(s *Scheduler) { s.events = pub }
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(),
		now:      time.Now,
		jobs:     make(map[string]*job),
		last:     make(map[string]domain.JobRun),
		inFlight: make(map[string]bool),
		baseCtx:  context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds a job. An empty spec registers a manual-only job.
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	if spec != "" {
		if _, err := cron.Parse(spec); err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = &job{name: name, spec: spec, fn: fn}
	return nil
}

// Start installs the cron triggers. Scheduled and triggered runs use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		name := j.name
		if err := s.cron.AddFunc(j.spec, func() { s.fire(name, TriggerSchedule) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		slog.Info("job scheduled", "job", name, "schedule", j.spec)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for runs started by it or by Trigger.
// Later cron ticks and triggers are dropped.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

// track registers a background run with the stop barrier and returns the
// context it should use. ok is false once Stop has been called.
func (s *Scheduler) track() (ctx context.Context, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, false
	}
	s.wg.Add(1)
	return s.baseCtx, true
}

func (s *Scheduler) fire(name, trigger string) {
	ctx, ok := s.track()
	if !ok {
		return
	}
	defer s.wg.Done()

	if _, err := s.Run(ctx, name, trigger); err != nil && !errors.Is(err, domain.ErrJobRunning) {
		slog.Error("job run failed", "job", name, "trigger", trigger, "error", err)
	}
}

// Run executes the job synchronously. It returns domain.ErrUnknownJob for an
// unregistered name and domain.ErrJobRunning if a run is already in progress.
func (s *Scheduler) Run(ctx context.Context, name, trigger string) (*domain.JobRun, error) {
	j, err := s.job(name)
	if err != nil {
		return nil, err
	}
	if !j.running.TryLock() {
		return nil, s.overlap(name, trigger)
	}
	defer j.running.Unlock()
	return s.execute(ctx, j, trigger)
}

// Trigger starts the job in the background. Overlaps and unknown names are
// reported synchronously.
func (s *Scheduler) Trigger(name, trigger string) error {
	j, err := s.job(name)
	if err != nil {
		return err
	}
	if !j.running.TryLock() {
		return s.overlap(name, trigger)
	}

	ctx, ok := s.track()
	if !ok {
		j.running.Unlock()
		return ErrStopped
	}
	go func() {
		defer s.wg.Done()
		defer j.running.Unlock()
		if _, err := s.execute(ctx, j, trigger); err != nil && !errors.Is(err, domain.ErrJobRunning) {
			slog.Error("job run failed", "job", name, "trigger", trigger, "error", err)
		}
	}()
	return nil
}

func (s *Scheduler) job(name string) (*job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownJob, name)
	}
	return j, nil
}

func (s *Scheduler) overlap(name, trigger string) error {
	metrics.JobOverlaps.WithLabelValues(name).Inc()
	slog.Warn("job already running, trigger ignored", "job", name, "trigger", trigger)
	return fmt.Errorf("%w: %s", domain.ErrJobRunning, name)
}

// execute runs j with its in-process guard already held.
func (s *Scheduler) execute(ctx context.Context, j *job, trigger string) (*domain.JobRun, error) {
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, j.name, s.lockTTL)
		if errors.Is(err, domain.ErrJobRunning) {
			return nil, s.overlap(j.name, trigger)
		}
		if err != nil {
			return nil, fmt.Errorf("acquire lock for %s: %w", j.name, err)
		}
		defer func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				slog.Warn("release job lock", "job", j.name, "error", err)
			}
		}()
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanJobRun, trace.WithAttributes(
		attribute.String(telemetry.AttrJob, j.name),
		attribute.String(telemetry.AttrTrigger, trigger),
	))
	defer span.End()

	s.setInFlight(j.name, true)
	defer s.setInFlight(j.name, false)
	metrics.JobRunning.WithLabelValues(j.name).Set(1)
	defer metrics.JobRunning.WithLabelValues(j.name).Set(0)

	log := logging.ForJob(j.name).With("trigger", trigger)
	log.Info("job started")

	run := domain.JobRun{Job: j.name, Trigger: trigger, StartedAt: s.now().UTC()}
	summary, err := j.fn(ctx)
	run.FinishedAt = s.now().UTC()
	run.Summary = summary

	outcome := "success"
	if err != nil {
		outcome = "failure"
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("job finished with errors", "duration", run.Duration(), "error", err)
	} else {
		log.Info("job finished", "duration", run.Duration(), "summary", summary)
	}
	metrics.JobRuns.WithLabelValues(j.name, trigger, outcome).Inc()
	metrics.JobDuration.WithLabelValues(j.name).Observe(run.Duration().Seconds())

	s.mu.Lock()
	s.last[j.name] = run
	s.mu.Unlock()

	if s.events != nil {
		if perr := s.events.PublishJobCompleted(context.WithoutCancel(ctx), &run); perr != nil {
			log.Warn("publish job completed", "error", perr)
		}
	}
	return &run, err
}

func (s *Scheduler) setInFlight(name string, v bool) {
	s.mu.Lock()
	s.inFlight[name] = v
	s.mu.Unlock()
}

// LastRun returns the most recent finished run of a job.
func (s *Scheduler) LastRun(name string) (domain.JobRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.last[name]
	return r, ok
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	now := s.now()
	for _, j := range s.jobs {
		info := JobInfo{Name: j.name, Spec: j.spec, Running: s.inFlight[j.name]}
		if j.spec != "" {
			if sched, err := cron.Parse(j.spec); err == nil {
				n := sched.Next(now)
				info.Next = &n
			}
		}
		if r, ok := s.last[j.name]; ok {
			r := r
			info.LastRun = &r
		}
		out = append(out, info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
