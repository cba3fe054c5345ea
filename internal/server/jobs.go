package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/solve"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// job is one asynchronous solve. All fields after cancel are guarded by
// the owning jobStore's mutex.
type job struct {
	id      string
	request solve.Request
	ctx     context.Context
	cancel  context.CancelFunc

	status     Status
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	result     *optimization.Result
	err        string
}

// JobView is the externally visible snapshot of a job.
type JobView struct {
	ID         string               `json:"optimization_id"`
	Status     Status               `json:"status"`
	Method     string               `json:"method"`
	Problem    string               `json:"problem"`
	CreatedAt  time.Time            `json:"created_at"`
	StartedAt  *time.Time           `json:"started_at,omitempty"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Result     *optimization.Result `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func (j *job) view() JobView {
	v := JobView{
		ID:        j.id,
		Status:    j.status,
		Method:    j.request.Method,
		Problem:   j.request.Problem,
		CreatedAt: j.createdAt,
		Result:    j.result,
		Error:     j.err,
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		v.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		v.FinishedAt = &t
	}
	return v
}

// jobStore keeps unfinished jobs in a map and finished ones in an LRU so
// memory stays bounded while recent results remain queryable.
type jobStore struct {
	mu        sync.Mutex
	active    map[string]*job
	finished  *lru.Cache
	maxActive int
}

func newJobStore(maxJobs int) (*jobStore, error) {
	cache, err := lru.New(maxJobs)
	if err != nil {
		return nil, err
	}
	return &jobStore{
		active:    make(map[string]*job),
		finished:  cache,
		maxActive: maxJobs,
	}, nil
}

// add registers a new pending job. It returns nil when too many jobs are
// already unfinished.
func (s *jobStore) add(parent context.Context, req solve.Request) *job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) >= s.maxActive {
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	j := &job{
		id:        uuid.NewString(),
		request:   req,
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusPending,
		createdAt: time.Now().UTC(),
	}
	s.active[j.id] = j
	return j
}

func (s *jobStore) lookup(id string) (*job, bool) {
	if j, ok := s.active[id]; ok {
		return j, true
	}
	if v, ok := s.finished.Get(id); ok {
		return v.(*job), true
	}
	return nil, false
}

func (s *jobStore) get(id string) (JobView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.lookup(id)
	if !ok {
		return JobView{}, false
	}
	return j.view(), true
}

// start moves a pending job to running. It fails if the job was cancelled
// while waiting for a worker.
func (s *jobStore) start(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.status != StatusPending {
		return false
	}
	j.status = StatusRunning
	j.startedAt = time.Now().UTC()
	return true
}

// finish records the outcome of a job. The result of a cancelled job is
// discarded. It returns the final status.
func (s *jobStore) finish(j *job, res *optimization.Result, err error) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.status != StatusCancelled {
		if err != nil {
			j.status = StatusFailed
			j.err = err.Error()
		} else {
			j.status = StatusCompleted
			j.result = res
		}
		j.finishedAt = time.Now().UTC()
	}
	j.cancel()
	s.retire(j)
	return j.status
}

func (s *jobStore) retire(j *job) {
	if _, ok := s.active[j.id]; ok {
		delete(s.active, j.id)
		s.finished.Add(j.id, j)
	}
}

// cancel marks a job cancelled. The returned status is the job's status
// before the call; ok is false for unknown IDs.
func (s *jobStore) cancel(id string) (prev Status, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.lookup(id)
	if !ok {
		return "", false
	}
	prev = j.status
	if prev.Terminal() {
		return prev, true
	}
	j.status = StatusCancelled
	j.finishedAt = time.Now().UTC()
	j.cancel()
	if prev == StatusPending {
		s.retire(j)
	}
	return prev, true
}

// cancelAll cancels the context of every unfinished job.
func (s *jobStore) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.active {
		j.cancel()
	}
}
