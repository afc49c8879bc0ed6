package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
	"github.com/shelfsy/shelfsy-server/internal/validation"
)

// maxFinishedJobs is how many finished jobs stay queryable by id.
const maxFinishedJobs = 20

// Restorer merges a decoded backup into the library.
type Restorer interface {
	Restore(ctx context.Context, b *format.Backup, opts backupimport.Options) (*backupimport.Result, error)
}

// JobObserver is told about every job state or progress change. Calls are
// made from the run goroutine and must not block.
type JobObserver interface {
	JobUpdated(JobStatus)
}

// RestoreService decodes backups and drives restore runs. At most one run
// is active at a time.
type RestoreService struct {
	restorer  Restorer
	validator *validation.Validator
	logger    *slog.Logger
	clock     func() time.Time
	observer  JobObserver

	mu       sync.Mutex
	jobs     map[string]*Job
	finished []string
	active   *Job
}

// NewRestoreService creates a RestoreService.
func NewRestoreService(restorer Restorer, v *validation.Validator, logger *slog.Logger) *RestoreService {
	if v == nil {
		v = validation.New()
	}
	return &RestoreService{
		restorer:  restorer,
		validator: v,
		logger:    logger,
		clock:     time.Now,
		jobs:      make(map[string]*Job),
	}
}

// SetObserver installs o for jobs admitted afterwards.
func (s *RestoreService) SetObserver(o JobObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// Start launches a restore of the backup at path in the background and
// returns its job. The run outlives ctx; use Cancel to stop it.
func (s *RestoreService) Start(ctx context.Context, path string, opts RestoreOptions) (*Job, error) {
	job, err := s.admit(path, opts)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job.setCancel(cancel)
	go func() {
		defer cancel()
		s.execute(runCtx, job)
	}()
	return job, nil
}

// Run restores the backup at path and waits for the result. Cancelling ctx
// stops the run between manga.
func (s *RestoreService) Run(ctx context.Context, path string, opts RestoreOptions) (*backupimport.Result, error) {
	job, err := s.admit(path, opts)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setCancel(cancel)

	s.execute(runCtx, job)
	return job.Result()
}

// Job returns the job with the given id.
func (s *RestoreService) Job(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Active returns the running job, or nil.
func (s *RestoreService) Active() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cancel asks the job to stop. The current manga finishes first.
func (s *RestoreService) Cancel(id string) error {
	job, err := s.Job(id)
	if err != nil {
		return err
	}
	job.requestCancel()
	return nil
}

// Validate decodes the backup at path and checks its records without
// restoring anything.
func (s *RestoreService) Validate(ctx context.Context, path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	b, f, err := s.decode(path)
	result.Format = f
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	result.Manifest = b.Manifest
	result.Counts = format.CountsOf(b)
	if err := format.Validate(s.validator, b); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	result.Valid = true
	return result, nil
}

func (s *RestoreService) admit(path string, opts RestoreOptions) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, ErrRestoreInProgress
	}

	job := newJob(uuid.NewString(), path, opts, s.clock())
	job.observer = s.observer
	s.jobs[job.ID] = job
	s.active = job
	return job, nil
}

// complete records the job's outcome and frees the active slot before
// Done is closed, so a caller woken by Done can start the next run.
func (s *RestoreService) complete(job *Job, res *backupimport.Result, err error) {
	job.finish(res, err, s.clock())

	s.mu.Lock()
	if s.active == job {
		s.active = nil
	}
	s.finished = append(s.finished, job.ID)
	if n := len(s.finished) - maxFinishedJobs; n > 0 {
		for _, id := range s.finished[:n] {
			delete(s.jobs, id)
		}
		s.finished = slices.Delete(s.finished, 0, n)
	}
	s.mu.Unlock()

	close(job.done)
}

// execute decodes, validates and restores for job. Decode and validation
// failures end the job before anything is written.
func (s *RestoreService) execute(ctx context.Context, job *Job) {
	logger := s.logger.With("job_id", job.ID, "path", job.Path)
	logger.Info("starting restore", "sync", job.Sync)

	job.setState(backupimport.StateDecoding)
	b, _, err := s.decode(job.Path)
	if err == nil {
		err = format.Validate(s.validator, b)
	}
	if err != nil {
		logger.Error("backup rejected", "error", err)
		s.complete(job, nil, err)
		return
	}

	res, err := s.restorer.Restore(ctx, b, backupimport.Options{
		Sync:     job.Sync,
		OnState:  job.setState,
		Notifier: job,
	})
	if err != nil {
		logger.Error("restore failed", "error", err)
	}
	s.complete(job, res, err)
}

func (s *RestoreService) decode(path string) (*format.Backup, Format, error) {
	b, err := DecodeFile(path)
	if err != nil {
		if errors.Is(err, ErrUnknownFormat) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("decode backup: %w", err)
	}
	f := FormatProtobuf
	if b.Manifest != nil {
		f = FormatArchive
	}
	return b, f, nil
}

// Job is one restore run.
type Job struct {
	ID        string
	Path      string
	Sync      bool
	StartedAt time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	observer JobObserver

	mu         sync.RWMutex
	state      backupimport.State
	progress   backupimport.ProgressEvent
	finishedAt time.Time
	result     *backupimport.Result
	err        error
	cancelled  bool
}

func newJob(id, path string, opts RestoreOptions, now time.Time) *Job {
	return &Job{
		ID:        id,
		Path:      path,
		Sync:      opts.Sync,
		StartedAt: now,
		done:      make(chan struct{}),
		state:     backupimport.StateIdle,
	}
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the run's result and error once the job is done.
func (j *Job) Result() (*backupimport.Result, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.err
}

// Status returns a snapshot of the job.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := JobStatus{
		ID:           j.ID,
		Path:         j.Path,
		Sync:         j.Sync,
		State:        j.state,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.finishedAt,
		Title:        j.progress.Title,
		ContentTitle: j.progress.ContentTitle,
		Progress:     j.progress.Progress,
		Total:        j.progress.Total,
	}
	if j.result != nil {
		st.Progress = j.result.Progress
		st.Total = j.result.Total
		st.Restored = j.result.Restored
		st.ErrorCount = len(j.result.Errors)
		st.LogDir = j.result.LogDir
		st.LogFile = j.result.LogFile
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

// Progress implements backupimport.Notifier.
func (j *Job) Progress(e backupimport.ProgressEvent) {
	j.mu.Lock()
	j.progress = e
	j.mu.Unlock()
	j.notify()
}

// Complete implements backupimport.Notifier.
func (j *Job) Complete(backupimport.CompletionEvent) {}

func (j *Job) setState(st backupimport.State) {
	j.mu.Lock()
	j.state = st
	j.mu.Unlock()
	j.notify()
}

func (j *Job) notify() {
	if j.observer != nil {
		j.observer.JobUpdated(j.Status())
	}
}

// setCancel installs the run's cancel func, firing it at once if a cancel
// was requested before the run started.
func (j *Job) setCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	j.cancel = cancel
	cancelled := j.cancelled
	j.mu.Unlock()
	if cancelled {
		cancel()
	}
}

func (j *Job) requestCancel() {
	j.mu.Lock()
	j.cancelled = true
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *Job) finish(res *backupimport.Result, err error, now time.Time) {
	j.mu.Lock()
	j.result = res
	j.err = err
	j.finishedAt = now
	switch {
	case res != nil:
		j.state = res.State
	case err != nil:
		j.state = backupimport.StateFailed
	}
	j.mu.Unlock()

	j.notify()
}
