// Package scheduler fans work out across a fixed pool of worker
// goroutines, each backed by its own double-buffered job queue, so a
// job submitted from any goroutine lands on exactly one shard and runs
// there without further synchronization.
package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/luxfi/dex/internal/dbuf"
)

// Job is one unit of work routed to a single worker by OwnerID.
// Execute runs first; Cleanup, if set, runs after it even when Execute
// is nil — it is the slot for releasing whatever the submitter
// allocated to carry the job's arguments.
type Job struct {
	Execute func()
	Cleanup func()
	OwnerID uint64
}

// WorkerID identifies one of a Scheduler's worker shards.
type WorkerID uint64

// Scheduler owns one worker goroutine and one job queue per shard.
// Jobs submitted with the same OwnerID (mod worker count) always land
// on the same worker, giving per-owner ordering without a lock.
//
// Each queue is single-producer/single-consumer; the scheduler
// serializes the producer side with a per-queue mutex so that jobs may
// be submitted from any goroutine — including a worker submitting to
// its own shard from inside a running job, which is how strategy
// callbacks place follow-up orders. A job that submits to its own
// shard must leave room in the write buffer: it cannot drain its own
// read side while it is the job being executed.
type Scheduler struct {
	queues   []*dbuf.Buffer[Job]
	pushMu   []sync.Mutex
	inFlight []atomic.Int64
	running  atomic.Bool
	wg       sync.WaitGroup

	numWorkers    uint64
	batchCapacity int
}

// New starts numWorkers worker goroutines, each with a job queue sized
// for batchCapacity pending jobs, and returns the running Scheduler.
func New(numWorkers int, batchCapacity int) *Scheduler {
	if numWorkers < 1 {
		numWorkers = 1
	}
	s := &Scheduler{
		queues:        make([]*dbuf.Buffer[Job], numWorkers),
		pushMu:        make([]sync.Mutex, numWorkers),
		inFlight:      make([]atomic.Int64, numWorkers),
		numWorkers:    uint64(numWorkers),
		batchCapacity: batchCapacity,
	}
	for i := range s.queues {
		s.queues[i] = dbuf.New[Job](batchCapacity)
	}
	s.running.Store(true)

	s.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go s.workerLoop(WorkerID(i))
	}
	return s
}

func (s *Scheduler) workerLoop(id WorkerID) {
	defer s.wg.Done()
	var job Job
	for s.running.Load() {
		s.inFlight[id].Store(1)
		if !s.queues[id].TryPop(&job) {
			s.inFlight[id].Store(0)
			runtime.Gosched()
			continue
		}
		if job.Execute != nil {
			job.Execute()
		}
		if job.Cleanup != nil {
			job.Cleanup()
		}
		s.inFlight[id].Store(0)
	}
}

// SubmitJob routes job to worker ownerID % WorkerCount(), spinning on
// a full queue until the job is accepted, and returns which worker it
// landed on.
func (s *Scheduler) SubmitJob(job Job) WorkerID {
	workerID := WorkerID(job.OwnerID % s.numWorkers)
	buffer := s.queues[workerID]
	for {
		s.pushMu[workerID].Lock()
		ok := buffer.TryPush(job)
		s.pushMu[workerID].Unlock()
		if ok {
			return workerID
		}
		s.tryFlush(workerID)
		runtime.Gosched()
	}
}

// tryFlush promotes workerID's pending writes, but only when the read
// side has already drained: dbuf.Flush spins until the consumer
// finishes the current read buffer, and spinning while holding the
// producer lock would wedge a worker that is mid-job trying to submit
// to its own shard. A skipped flush is retried by the next
// ProcessJobs* call.
func (s *Scheduler) tryFlush(id WorkerID) {
	q := s.queues[id]
	if q.PendingWrites() == 0 || q.PendingReads() > 0 {
		return
	}
	s.pushMu[id].Lock()
	if q.PendingReads() == 0 {
		q.Flush()
	}
	s.pushMu[id].Unlock()
}

// ProcessJobs flushes every worker's queue and blocks until all of
// them drain, re-flushing as read buffers empty out so writes that
// arrived mid-drain are promoted too.
func (s *Scheduler) ProcessJobs() {
	for !s.IsComplete() {
		for i := range s.queues {
			s.tryFlush(WorkerID(i))
		}
		runtime.Gosched()
	}
}

// ProcessJobsAsync flushes every worker's queue without waiting for
// the flushed jobs to finish executing. A queue whose read side is
// still draining keeps its pending writes until the next flush.
func (s *Scheduler) ProcessJobsAsync() {
	for i := range s.queues {
		s.tryFlush(WorkerID(i))
	}
}

// ProcessJobsOn flushes workerID's queue and blocks until it drains.
func (s *Scheduler) ProcessJobsOn(workerID WorkerID) {
	for !s.IsWorkerComplete(workerID) {
		s.tryFlush(workerID)
		runtime.Gosched()
	}
}

// ProcessJobsOnAsync flushes workerID's queue without waiting.
func (s *Scheduler) ProcessJobsOnAsync(workerID WorkerID) {
	s.tryFlush(workerID)
}

// IsComplete reports whether every worker's queue is empty and no job
// is mid-execution.
func (s *Scheduler) IsComplete() bool {
	for i := range s.queues {
		if !s.IsWorkerComplete(WorkerID(i)) {
			return false
		}
	}
	return true
}

// IsWorkerComplete reports whether workerID's queue is empty and its
// worker is not mid-job. Once it returns true, every side effect of
// the drained jobs — result-cell writes included — is visible to the
// caller.
func (s *Scheduler) IsWorkerComplete(workerID WorkerID) bool {
	return s.queues[workerID].Empty() && s.inFlight[workerID].Load() == 0
}

// IsWorkerFull reports whether workerID's write buffer is at capacity.
func (s *Scheduler) IsWorkerFull(workerID WorkerID) bool {
	return s.queues[workerID].Full()
}

// WorkerCount returns the number of worker shards.
func (s *Scheduler) WorkerCount() int { return int(s.numWorkers) }

// BatchCapacity returns the per-worker queue capacity.
func (s *Scheduler) BatchCapacity() int { return s.batchCapacity }

// QueueDepth reports pending writes and pending reads for workerID, for
// exporting as metrics gauges.
func (s *Scheduler) QueueDepth(workerID WorkerID) (pendingWrites, pendingReads uint64) {
	q := s.queues[workerID]
	return q.PendingWrites(), q.PendingReads()
}

// Shutdown drains all queues, stops every worker goroutine, and waits
// for them to exit. It is safe to call at most once.
func (s *Scheduler) Shutdown() {
	s.ProcessJobs()
	s.running.Store(false)
	s.wg.Wait()
}
