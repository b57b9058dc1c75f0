package evolve

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/hexgrow/sim"
)

// serialThreshold is the minimum population size to use the worker pool.
// A whole simulation run is expensive, so parallel evaluation pays off
// almost immediately.
const serialThreshold = 4

// evalChunk is a range of population indices for one worker.
type evalChunk struct {
	start, end int
}

// evalPool evaluates population members on persistent worker goroutines.
// Each worker writes only to the individuals in its own chunk, so no
// locking is needed.
type evalPool struct {
	evaluator  Evaluator
	numWorkers int

	workChan chan evalChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running

	members []*Individual // generation currently being evaluated
}

func newEvalPool(evaluator Evaluator, workers int) *evalPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &evalPool{evaluator: evaluator, numWorkers: workers}
}

// start launches the persistent worker goroutines.
func (p *evalPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan evalChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *evalPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *evalPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.evalChunk(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// evalChunk scores a range of members. A failed evaluation zeroes the
// member's score rather than aborting the generation; the failure is
// flagged so callers can count them.
func (p *evalPool) evalChunk(i0, i1 int) {
	for i := i0; i < i1; i++ {
		ind := p.members[i]
		res, err := p.evaluator.Evaluate(ind.Genome)
		if err != nil {
			ind.Fitness = 0
			ind.Steps = 0
			ind.Cells = 0
			ind.Reason = sim.ReasonNone
			ind.Failed = true
			continue
		}
		ind.Fitness = res.Fitness
		ind.Steps = res.Steps
		ind.Cells = res.Cells
		ind.Reason = res.Reason
		ind.Failed = false
	}
}

// evaluateAll scores every member, single-threaded for tiny populations
// and chunked across the pool otherwise.
func (p *evalPool) evaluateAll(members []*Individual) {
	p.members = members
	n := len(members)
	if n == 0 {
		return
	}

	if n < serialThreshold || p.numWorkers == 1 {
		p.evalChunk(0, n)
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- evalChunk{start: start, end: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
