package newsletter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// JobStatus is the lifecycle state of a queued broadcast.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// InterruptedReason is recorded on jobs that were running when the process
// stopped.
const InterruptedReason = "interrupted"

// ErrJobNotFound is returned by JobStore implementations for unknown ids.
var ErrJobNotFound = errors.New("newsletter: job not found")

// Job is a persisted broadcast request.
type Job struct {
	ID         string     `json:"id"`
	Message    Message    `json:"-"`
	Status     JobStatus  `json:"status"`
	Sent       int        `json:"sent"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// JobStore persists jobs so queued work survives a restart.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListQueuedJobs(ctx context.Context) ([]Job, error)
	MarkJobRunning(ctx context.Context, id string) error
	FinishJob(ctx context.Context, id string, status JobStatus, res Result, errMsg string) error
	FailRunningJobs(ctx context.Context, reason string) (int, error)
}

// Broadcaster is implemented by *Service.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message) (Result, error)
}

// DispatcherConfig holds dispatcher options.
type DispatcherConfig struct {
	QueueSize int
	// SweepSpec is the cron schedule for re-queueing persisted jobs that
	// are not in memory.
	SweepSpec string
}

// DefaultDispatcherConfig returns the default dispatcher options.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize: 32,
		SweepSpec: "* * * * *",
	}
}

// Dispatcher runs broadcasts on a single background worker so requests
// never wait for a send loop and two broadcasts never interleave.
type Dispatcher struct {
	jobs        JobStore
	broadcaster Broadcaster
	logger      *slog.Logger
	cfg         DispatcherConfig

	queue   chan string
	cron    *cron.Cron
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.Mutex
	pending map[string]struct{}
	running bool
}

// NewDispatcher creates a dispatcher. Call Start before Enqueue.
func NewDispatcher(jobs JobStore, b Broadcaster, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = def.SweepSpec
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		jobs:        jobs,
		broadcaster: b,
		logger:      logger,
		cfg:         cfg,
		queue:       make(chan string, cfg.QueueSize),
		pending:     make(map[string]struct{}),
	}
}

// Start recovers jobs left over from a previous run and starts the worker
// and the sweep schedule. Broadcasts run with ctx; cancelling it stops the
// current send loop between recipients. A stopped dispatcher can be
// started again.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	n, err := d.jobs.FailRunningJobs(ctx, InterruptedReason)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	sched := cron.New()
	if _, err := sched.AddFunc(d.cfg.SweepSpec, func() { d.sweep(ctx) }); err != nil {
		d.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	d.cron, d.done, d.running = sched, done, true
	d.mu.Unlock()

	if n > 0 {
		d.logger.Warn("marked interrupted newsletter jobs as failed", "count", n)
	}

	d.wg.Add(1)
	go d.worker(ctx, done)
	sched.Start()
	d.sweep(ctx)

	d.logger.Info("newsletter dispatcher started", "queue_size", d.cfg.QueueSize)
	return nil
}

// Stop stops accepting work and waits for the current job to finish.
// Queued jobs stay persisted and are picked up on the next Start.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	sched, done := d.cron, d.done
	d.mu.Unlock()

	<-sched.Stop().Done()
	close(done)
	d.wg.Wait()
	d.logger.Info("newsletter dispatcher stopped")
}

// Enqueue validates msg, persists a queued job and schedules it.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) (Job, error) {
	if err := msg.Validate(); err != nil {
		return Job{}, err
	}
	job := Job{
		ID:        uuid.NewString(),
		Message:   msg,
		Status:    JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.jobs.CreateJob(ctx, job); err != nil {
		return Job{}, errors.Join(ErrDependency, err)
	}
	d.push(job.ID)
	d.logger.Info("newsletter job queued", "job_id", job.ID, "kind", msg.Kind, "subject", msg.Subject)
	return job, nil
}

// Job returns the current state of the job with id.
func (d *Dispatcher) Job(ctx context.Context, id string) (Job, error) {
	return d.jobs.GetJob(ctx, id)
}

func (d *Dispatcher) push(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	if _, ok := d.pending[id]; ok {
		return
	}
	select {
	case d.queue <- id:
		d.pending[id] = struct{}{}
	default:
		d.logger.Warn("newsletter queue full, job left for the next sweep", "job_id", id)
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	jobs, err := d.jobs.ListQueuedJobs(ctx)
	if err != nil {
		d.logger.Error("failed to list queued newsletter jobs", "error", err)
		return
	}
	for _, job := range jobs {
		d.push(job.ID)
	}
}

func (d *Dispatcher) worker(ctx context.Context, done <-chan struct{}) {
	defer d.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case id := <-d.queue:
			// A job received after Stop stays queued for the next Start.
			select {
			case <-done:
				d.forget(id)
				return
			default:
			}
			d.run(ctx, id)
			d.forget(id)
		}
	}
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *Dispatcher) run(ctx context.Context, id string) {
	job, err := d.jobs.GetJob(ctx, id)
	if err != nil {
		d.logger.Error("failed to load newsletter job", "job_id", id, "error", err)
		return
	}
	if job.Status != JobQueued {
		return
	}
	if err := d.jobs.MarkJobRunning(ctx, id); err != nil {
		d.logger.Error("failed to mark newsletter job running", "job_id", id, "error", err)
		return
	}

	start := time.Now()
	res, err := d.broadcaster.Broadcast(ctx, job.Message)
	status, errMsg := JobDone, ""
	if err != nil {
		status, errMsg = JobFailed, err.Error()
	}
	if ferr := d.jobs.FinishJob(context.WithoutCancel(ctx), id, status, res, errMsg); ferr != nil {
		d.logger.Error("failed to finish newsletter job", "job_id", id, "error", ferr)
	}
	d.logger.Info("newsletter job finished",
		"job_id", id,
		"status", status,
		"sent", res.Sent,
		"failed", res.Failed,
		"duration", time.Since(start))
}
