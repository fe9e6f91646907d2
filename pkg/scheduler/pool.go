package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/worker"
	"github.com/eapache/queue"
)

const DefaultPoolSize = 5

// Process-wide pool counter, used to keep worker identities unique.
var poolNumber atomic.Int64

// A job executed by a pool worker. The worker passes its own identity.
type Job func(id worker.ID)

// A fixed set of worker goroutines consuming an unbounded FIFO queue.
// Submission never blocks; at most size jobs execute at the same time.
type Pool struct {
	name   string
	number int64
	size   int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  *queue.Queue
	closed bool

	active int
	peak   int

	wg sync.WaitGroup
}

func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &Pool{
		name:   name,
		number: poolNumber.Add(1),
		size:   size,
		queue:  queue.New(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start the workers.
func (p *Pool) Start() {
	p.wg.Add(p.size)
	for i := 1; i <= p.size; i++ {
		go p.worker(worker.NewID(p.name, p.number, i))
	}
}

func (p *Pool) worker(id worker.ID) {
	defer p.wg.Done()

	log.Tracef("Worker %s started", id)
	defer log.Tracef("Worker %s stopped", id)

	for {
		job := p.next()
		if job == nil {
			return
		}

		p.execute(id, job)
	}
}

// Block until a job is available or the pool is shut down.
func (p *Pool) next() Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.queue.Length() == 0 && !p.closed {
		p.cond.Wait()
	}

	if p.closed {
		return nil
	}

	job := p.queue.Remove().(Job)
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	return job
}

func (p *Pool) execute(id worker.ID, job Job) {
	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	job(id)
}

// Enqueue a job. Returns false if the pool has been shut down.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	p.queue.Add(job)
	p.cond.Signal()
	return true
}

// Stop the workers. Queued jobs are discarded and their number returned.
// Jobs already executing are not interrupted by the pool itself.
func (p *Pool) Shutdown() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0
	}
	p.closed = true

	dropped := p.queue.Length()
	p.queue = queue.New()
	p.cond.Broadcast()
	return dropped
}

// Wait for all workers to exit after Shutdown. A negative timeout
// returns immediately, zero waits forever. Returns false on timeout.
func (p *Pool) Wait(timeout time.Duration) bool {
	if timeout < 0 {
		return false
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if timeout == 0 {
		<-done
		return true
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Number of queued jobs.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Length()
}

// Number of jobs currently executing.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Highest number of jobs that have executed at the same time.
func (p *Pool) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}
