// Package parallel provides the fixed-size worker pool and the chunked
// parallel algorithms (map, reduce, rolling, correlation) used by the
// analytics kernels. All algorithms produce output identical to their serial
// execution regardless of scheduling.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/quantfold/analytics/pkg/config"
	"github.com/quantfold/analytics/pkg/logger"
)

// ErrPoolClosed is reported by futures submitted after Close.
var ErrPoolClosed = errors.New("parallel: pool closed")

// Pool is a fixed-size worker pool. Each worker owns a FIFO task deque and
// the submitter pushes to a round-robin target.
type Pool struct {
	workers []*worker
	wg      sync.WaitGroup
	next    atomic.Uint64
	closed  atomic.Bool
	tuning  config.ParallelConfig
	log     *logger.Logger
}

type worker struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks []func()
	stop  bool
}

// NewPool creates and starts a pool with min(cfg.MaxThreads, hardware
// concurrency) workers. MaxThreads == 0 means hardware concurrency.
func NewPool(cfg config.ParallelConfig, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.Nop()
	}

	n := runtime.NumCPU()
	if cfg.MaxThreads > 0 && cfg.MaxThreads < n {
		n = cfg.MaxThreads
	}
	if n < 1 {
		n = 1
	}

	p := &Pool{
		workers: make([]*worker, n),
		tuning:  cfg,
		log:     log,
	}

	for i := range p.workers {
		w := &worker{}
		w.cond = sync.NewCond(&w.mu)
		p.workers[i] = w

		p.wg.Add(1)
		go p.run(w)
	}

	log.WithField("workers", n).Debug("worker pool started")
	return p
}

func (p *Pool) run(w *worker) {
	defer p.wg.Done()
	for {
		w.mu.Lock()
		for len(w.tasks) == 0 && !w.stop {
			w.cond.Wait()
		}
		if w.stop {
			// Pending tasks are abandoned on shutdown.
			w.mu.Unlock()
			return
		}
		task := w.tasks[0]
		w.tasks = w.tasks[1:]
		w.mu.Unlock()

		task()
	}
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	return len(p.workers)
}

// Close stops the pool. Queued but unstarted tasks are abandoned; their
// futures report ErrPoolClosed.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		w.mu.Lock()
		w.stop = true
		w.cond.Broadcast()
		w.mu.Unlock()
	}
	p.wg.Wait()
	p.log.Debug("worker pool stopped")
}

// submit enqueues a task on the next round-robin worker.
func (p *Pool) submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	idx := int(p.next.Add(1)-1) % len(p.workers)
	w := p.workers[idx]

	w.mu.Lock()
	if w.stop {
		w.mu.Unlock()
		return ErrPoolClosed
	}
	w.tasks = append(w.tasks, task)
	w.cond.Signal()
	w.mu.Unlock()
	return nil
}

// Future carries the result of a submitted task. Get blocks the caller until
// the task completes; a worker panic is captured and returned as an error.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Get blocks until the task finishes and returns its result.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// Submit schedules fn on the pool and returns its future.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("parallel: task panic: %v", r)
			}
			close(f.done)
		}()
		f.val, f.err = fn()
	}
	if err := p.submit(task); err != nil {
		f.err = err
		close(f.done)
	}
	return f
}

// serialFor reports whether n is below the parallel threshold.
func (p *Pool) serialFor(n int) bool {
	return n < p.tuning.ParallelThreshold || p.Workers() <= 1
}

// chunkCount picks the number of chunks for a range of size n.
func (p *Pool) chunkCount(n int) int {
	k := p.Workers()
	if p.tuning.AdaptiveChunking {
		denom := p.tuning.MinChunkSize * p.tuning.ChunkSizeFactor
		if denom < 1 {
			denom = 1
		}
		k = n / denom
	}
	if k < 1 {
		k = 1
	}
	if max := p.Workers() * 4; k > max {
		k = max
	}
	return k
}

// chunkBounds splits [0, n) into k near-equal half-open ranges.
func chunkBounds(n, k int) [][2]int {
	bounds := make([][2]int, 0, k)
	base := n / k
	rem := n % k
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		bounds = append(bounds, [2]int{start, start + size})
		start += size
	}
	return bounds
}

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default returns the process-wide pool, creating it on first use with the
// default tuning. The core API accepts explicit pools; this is the
// convenience instance.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = NewPool(config.Default().Parallel, logger.Nop())
	})
	return defaultPool
}
