package pluginhost

import (
	"context"
	"sync"
	"time"

	"github.com/reedcms/reed/ids"
	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/worker"
	lua "github.com/yuin/gopher-lua"
)

// HookJob is one queued async hook invocation, e.g. an after_save fired
// without the caller waiting on plugin completion.
type HookJob struct {
	JobID    string
	HookName string
	Input    lua.LValue
	Timeout  time.Duration
}

// MemQueue is an in-process, channel-backed worker.Queue. Jobs live only in
// memory: a restart drops whatever was queued, which is acceptable for
// best-effort async hook fan-out (the request path itself never depends on
// an async hook's outcome).
type MemQueue struct {
	ch chan interface{}

	mu         sync.Mutex
	processing map[string]time.Time
}

// NewMemQueue returns a MemQueue buffering up to capacity pending jobs.
func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemQueue{ch: make(chan interface{}, capacity), processing: make(map[string]time.Time)}
}

func (q *MemQueue) Enqueue(job interface{}) error {
	select {
	case q.ch <- job:
		return nil
	default:
		return errQueueFull
	}
}

func (q *MemQueue) Dequeue(queueName string, timeout time.Duration) (interface{}, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (q *MemQueue) MarkProcessing(jobID string, deadline time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processing[jobID] = deadline
	return nil
}

func (q *MemQueue) CompleteJob(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, jobID)
	return nil
}

func (q *MemQueue) FailJob(jobID string, requeue bool, queueName string, retryCount int) error {
	q.mu.Lock()
	delete(q.processing, jobID)
	q.mu.Unlock()
	return nil
}

var errQueueFull = &queueFullError{}

type queueFullError struct{}

func (*queueFullError) Error() string { return "pluginhost: async hook queue full" }

// hookProcessor adapts Dispatcher to worker.JobProcessor, so async hook
// dispatch reuses the same dequeue/process/timeout/fail worker pool shape
// as the rest of the core's background job processing.
type hookProcessor struct {
	dispatcher *Dispatcher
	logger     *logging.ContextLogger
}

func (p *hookProcessor) Process(ctx context.Context, job interface{}) error {
	hj, ok := job.(HookJob)
	if !ok {
		return nil
	}
	_, err := p.dispatcher.Dispatch(ctx, hj.HookName, hj.Input)
	if err != nil && p.logger != nil {
		p.logger.WithField("hook", hj.HookName).WithError(err).Warn("async hook dispatch failed")
	}
	return err
}

func (p *hookProcessor) GetJobID(job interface{}) string {
	if hj, ok := job.(HookJob); ok {
		return hj.JobID
	}
	return ""
}

func (p *hookProcessor) GetTimeout(job interface{}) time.Duration {
	if hj, ok := job.(HookJob); ok && hj.Timeout > 0 {
		return hj.Timeout
	}
	return 30 * time.Second
}

// AsyncDispatcher runs a pool of workers draining a MemQueue of HookJobs
// through dispatcher, for hooks the caller does not need to wait on
// (after_save, after_delete, after_render).
type AsyncDispatcher struct {
	queue *MemQueue
	pool  *worker.Pool
}

// NewAsyncDispatcher builds an AsyncDispatcher. workers sets the number of
// concurrent hook-dispatch goroutines on the single "hooks" queue.
func NewAsyncDispatcher(dispatcher *Dispatcher, logger *logging.ContextLogger, workers int) *AsyncDispatcher {
	if workers <= 0 {
		workers = 3
	}
	q := NewMemQueue(256)
	proc := &hookProcessor{dispatcher: dispatcher, logger: logger}
	pool := worker.NewPool(q, proc, worker.Config{Queues: map[string]int{"hooks": workers}})
	return &AsyncDispatcher{queue: q, pool: pool}
}

func (a *AsyncDispatcher) Start() { a.pool.Start() }
func (a *AsyncDispatcher) Stop()  { a.pool.Stop() }

// Fire enqueues hookName for background dispatch and returns immediately.
// A full queue drops the invocation rather than blocking the caller.
func (a *AsyncDispatcher) Fire(hookName string, input lua.LValue) error {
	return a.queue.Enqueue(HookJob{JobID: ids.New(), HookName: hookName, Input: input})
}
