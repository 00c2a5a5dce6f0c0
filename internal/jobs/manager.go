// Package jobs – registry and scheduler
//
// Manager owns every asynchronous generation job. Submissions are validated,
// checked against the artifact cache (a hit yields a job that is already
// complete) and otherwise queued. A fixed pool of workers drains the queue in
// FIFO order; each run is isolated from panics and bounded by a timeout.
//
// Only workers move jobs between states, following
// pending -> running -> complete | failed. Terminal states never change.
// Callers observe jobs through domain.JobStatus snapshots and never share the
// live records.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

// Runner executes generation requests. Lookup must not generate.
type Runner interface {
	Lookup(ctx context.Context, req domain.GenerationRequest) (domain.Artifact, bool)
	Run(ctx context.Context, req domain.GenerationRequest) (domain.Artifact, error)
}

// Config sizes the scheduler.
type Config struct {
	// Workers is the number of concurrent generations. Values < 1 become 1.
	Workers int
	// Timeout bounds a single run. Zero disables the timeout.
	Timeout time.Duration
	// MaxAge is how long terminal jobs stay queryable. Zero keeps them for
	// the process lifetime.
	MaxAge time.Duration
	// MaxJobs caps how many jobs are retained. When a submission would exceed
	// it the oldest terminal jobs are dropped; pending and running jobs are
	// never evicted. Zero disables the cap.
	MaxJobs int
	// IdempotencyTTL bounds how long after submission a key replays its job.
	// Zero lets keys live as long as the job.
	IdempotencyTTL time.Duration
}

// SubmitOptions carries per-submission metadata.
type SubmitOptions struct {
	ClientID string
	// IdempotencyKey, when set, makes repeated submissions by the same client
	// return the original job.
	IdempotencyKey string
	// Release is called exactly once when the submission stops holding a
	// concurrency slot: on the terminal transition of a queued job, or
	// immediately for cache hits, replays and rejected submissions.
	Release func()
}

type job struct {
	status  domain.JobStatus
	req     domain.GenerationRequest
	result  *domain.Artifact
	release func()
}

type idemKey struct{ client, key string }

// Manager is safe for concurrent use.
type Manager struct {
	runner Runner
	cfg    Config
	now    func() time.Time

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   map[string]*job
	idem   map[idemKey]string
	queue  []string
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts cfg.Workers workers.
func New(r Runner, cfg Config) *Manager {
	return newManager(r, cfg, time.Now)
}

func newManager(r Runner, cfg Config, now func() time.Time) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		runner: r,
		cfg:    cfg,
		now:    now,
		jobs:   make(map[string]*job),
		idem:   make(map[idemKey]string),
		ctx:    ctx,
		cancel: cancel,
	}
	m.cond = sync.NewCond(&m.mu)
	for range cfg.Workers {
		m.wg.Add(1)
		go m.worker()
	}
	log.Info().Int("workers", cfg.Workers).Dur("timeout", cfg.Timeout).Msg("job workers started")
	return m
}

// Submit registers a job for req. The returned status is complete when the
// artifact was already cached and pending otherwise. The boolean reports an
// idempotent replay of an earlier submission.
func (m *Manager) Submit(ctx context.Context, req domain.GenerationRequest, opts SubmitOptions) (domain.JobStatus, bool, error) {
	release := onceFunc(opts.Release)

	if err := req.Validate(); err != nil {
		release()
		return domain.JobStatus{}, false, err
	}

	if st, ok := m.Replay(opts.ClientID, opts.IdempotencyKey); ok {
		release()
		return st, true, nil
	}

	art, hit := m.runner.Lookup(ctx, req)
	now := m.now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		release()
		return domain.JobStatus{}, false, ErrClosed
	}
	// Re-check under the lock: a concurrent submission with the same key may
	// have registered first.
	if st, ok := m.replayLocked(opts.ClientID, opts.IdempotencyKey, now); ok {
		m.mu.Unlock()
		release()
		return st, true, nil
	}
	m.purgeLocked(now)

	j := &job{
		status: domain.JobStatus{
			ID:        uuid.NewString(),
			Kind:      req.Kind,
			State:     domain.JobPending,
			ClientID:  opts.ClientID,
			CacheKey:  domain.DeriveKey(req),
			CreatedAt: now,
			UpdatedAt: now,
		},
		req: req,
	}
	if hit {
		j.status.State = domain.JobComplete
		j.result = &art
	} else {
		j.release = release
		m.queue = append(m.queue, j.status.ID)
		queueDepth.Set(float64(len(m.queue)))
		m.cond.Signal()
	}
	m.jobs[j.status.ID] = j
	if opts.IdempotencyKey != "" {
		m.idem[idemKey{opts.ClientID, opts.IdempotencyKey}] = j.status.ID
	}
	st := j.status
	m.mu.Unlock()

	transitions.WithLabelValues(string(st.State)).Inc()
	if hit {
		release()
		log.Debug().Str("job_id", st.ID).Str("kind", string(st.Kind)).Msg("job served from cache")
	} else {
		log.Debug().Str("job_id", st.ID).Str("kind", string(st.Kind)).Msg("job queued")
	}
	return st, false, nil
}

// Replay returns the job an earlier submission registered under
// (clientID, key). Empty keys never match.
func (m *Manager) Replay(clientID, key string) (domain.JobStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replayLocked(clientID, key, m.now())
}

func (m *Manager) replayLocked(clientID, key string, now time.Time) (domain.JobStatus, bool) {
	if key == "" {
		return domain.JobStatus{}, false
	}
	k := idemKey{clientID, key}
	id, ok := m.idem[k]
	if !ok {
		return domain.JobStatus{}, false
	}
	j, ok := m.getLocked(id, now)
	if !ok {
		return domain.JobStatus{}, false
	}
	if m.cfg.IdempotencyTTL > 0 && now.Sub(j.status.CreatedAt) > m.cfg.IdempotencyTTL {
		delete(m.idem, k)
		return domain.JobStatus{}, false
	}
	return j.status, true
}

// Status returns a snapshot of job id or ErrNotFound.
func (m *Manager) Status(id string) (domain.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.getLocked(id, m.now())
	if !ok {
		return domain.JobStatus{}, ErrNotFound
	}
	return j.status, nil
}

// Result returns the artifact of a complete job. It fails with ErrNotFound
// for unknown ids and with an error wrapping ErrNotReady otherwise.
func (m *Manager) Result(id string) (domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.getLocked(id, m.now())
	if !ok {
		return domain.Artifact{}, ErrNotFound
	}
	if j.status.State != domain.JobComplete || j.result == nil {
		return domain.Artifact{}, &NotReadyError{State: j.status.State}
	}
	return *j.result, nil
}

// ActiveCount returns the number of pending or running jobs of clientID.
func (m *Manager) ActiveCount(clientID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.status.ClientID == clientID && !j.status.State.Terminal() {
			n++
		}
	}
	return n
}

// QueueLen reports jobs waiting for a worker.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops accepting jobs, fails everything still queued and waits for
// running jobs until ctx ends, after which their contexts are cancelled.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	queued := m.queue
	m.queue = nil
	queueDepth.Set(0)
	m.cond.Broadcast()
	m.mu.Unlock()

	for _, id := range queued {
		m.finish(id, domain.Artifact{}, ErrClosed)
	}

	done := make(chan struct{})
	go func() { m.wg.Wait(); close(done) }()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

// getLocked returns a live job, dropping it when it expired.
func (m *Manager) getLocked(id string, now time.Time) (*job, bool) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	if m.expired(j, now) {
		m.deleteLocked(id)
		return nil, false
	}
	return j, true
}

func (m *Manager) expired(j *job, now time.Time) bool {
	return m.cfg.MaxAge > 0 && j.status.State.Terminal() && now.Sub(j.status.UpdatedAt) > m.cfg.MaxAge
}

func (m *Manager) purgeLocked(now time.Time) {
	if m.cfg.MaxAge > 0 {
		for id, j := range m.jobs {
			if m.expired(j, now) {
				m.deleteLocked(id)
			}
		}
	}
	if m.cfg.MaxJobs <= 0 || len(m.jobs) < m.cfg.MaxJobs {
		return
	}

	// Make room for one more job, oldest terminal first.
	done := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.status.State.Terminal() {
			done = append(done, j)
		}
	}
	sort.Slice(done, func(a, b int) bool {
		return done[a].status.CreatedAt.Before(done[b].status.CreatedAt)
	})
	for _, j := range done {
		if len(m.jobs) < m.cfg.MaxJobs {
			break
		}
		m.deleteLocked(j.status.ID)
		evictions.Inc()
	}
}

func (m *Manager) deleteLocked(id string) {
	delete(m.jobs, id)
	for k, v := range m.idem {
		if v == id {
			delete(m.idem, k)
		}
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		id, ok := m.next()
		if !ok {
			return
		}
		m.run(id)
	}
}

// next blocks until a job is queued or the manager closes.
func (m *Manager) next() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return "", false
	}
	id := m.queue[0]
	m.queue[0] = ""
	m.queue = m.queue[1:]
	queueDepth.Set(float64(len(m.queue)))
	return id, true
}

func (m *Manager) run(id string) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.status.State != domain.JobPending {
		m.mu.Unlock()
		return
	}
	j.status.State = domain.JobRunning
	j.status.UpdatedAt = m.now()
	req := j.req
	m.mu.Unlock()
	transitions.WithLabelValues(string(domain.JobRunning)).Inc()

	ctx := m.ctx
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	art, err := m.safeRun(ctx, req)
	runDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
	m.finish(id, art, err)
}

// safeRun converts a panicking runner into a failed job.
func (m *Manager) safeRun(ctx context.Context, req domain.GenerationRequest) (art domain.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("kind", string(req.Kind)).
				Msg("generation panicked")
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return m.runner.Run(ctx, req)
}

func (m *Manager) finish(id string, art domain.Artifact, runErr error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.status.State.Terminal() {
		m.mu.Unlock()
		return
	}
	j.status.UpdatedAt = m.now()
	if runErr != nil {
		j.status.State = domain.JobFailed
		j.status.Error = PublicMessage(runErr)
	} else {
		j.status.State = domain.JobComplete
		j.result = &art
	}
	st := j.status
	release := j.release
	j.release = nil
	j.req = domain.GenerationRequest{}
	m.mu.Unlock()

	if release != nil {
		release()
	}
	transitions.WithLabelValues(string(st.State)).Inc()

	ev := log.Info()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Str("job_id", st.ID).
		Str("kind", string(st.Kind)).
		Str("state", string(st.State)).
		Dur("age", st.UpdatedAt.Sub(st.CreatedAt)).
		Msg("job finished")
}

// PublicMessage maps a run error to the detail exposed in job status.
// Internal errors are reduced to a generic message.
func PublicMessage(err error) string {
	var pub interface{ PublicMessage() string }
	switch {
	case errors.As(err, &pub):
		return pub.PublicMessage()
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	case errors.Is(err, ErrClosed):
		return "server shutting down"
	case errors.Is(err, context.Canceled):
		return "generation cancelled"
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return "generation failed"
}

func onceFunc(f func()) func() {
	if f == nil {
		return func() {}
	}
	return sync.OnceFunc(f)
}
