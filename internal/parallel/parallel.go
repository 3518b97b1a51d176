package parallel

import (
	"errors"
	"fmt"
	"sync"
)

// Group coordinates a fixed set of workers that process disjoint shards of
// the station network and meet at collective operations. There is no dynamic
// work stealing: a station is owned by exactly one worker for the whole run,
// so workers only ever synchronize at barriers and reductions.
type Group struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	phase   int

	vecSum []float64
	intSum int
}

// NewGroup creates a communicator group for size workers.
func NewGroup(size int) (*Group, error) {
	if size <= 0 {
		return nil, fmt.Errorf("parallel: group size must be positive, got %d", size)
	}
	g := &Group{size: size}
	g.cond = sync.NewCond(&g.mu)
	return g, nil
}

// Comm is one worker's handle on the group.
type Comm struct {
	g    *Group
	rank int
}

// Comm returns the communicator handle for the given worker rank.
func (g *Group) Comm(rank int) (*Comm, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("parallel: rank %d out of range [0,%d)", rank, g.size)
	}
	return &Comm{g: g, rank: rank}, nil
}

// Rank is this worker's index within the group.
func (c *Comm) Rank() int { return c.rank }

// Size is the number of workers in the group.
func (c *Comm) Size() int { return c.g.size }

// Mine reports whether the station at index idx belongs to this worker's
// shard. Stations are distributed round-robin by index.
func (c *Comm) Mine(idx int) bool { return idx%c.g.size == c.rank }

// Barrier blocks until every worker in the group has called it.
func (c *Comm) Barrier() { c.g.barrier(nil) }

// AllReduceSum element-wise sums vec across all workers and returns the
// reduced vector to every caller. All workers must call with vectors of the
// same length. The accumulator is reset once every worker has read the
// result, so consecutive reductions do not bleed into each other.
func (c *Comm) AllReduceSum(vec []float64) []float64 {
	g := c.g

	g.mu.Lock()
	if g.vecSum == nil {
		g.vecSum = make([]float64, len(vec))
	}
	for i, v := range vec {
		g.vecSum[i] += v
	}
	g.mu.Unlock()

	g.barrier(nil)

	g.mu.Lock()
	out := make([]float64, len(g.vecSum))
	copy(out, g.vecSum)
	g.mu.Unlock()

	g.barrier(func() { g.vecSum = nil })
	return out
}

// AllReduceSumInt sums a scalar contribution across all workers.
func (c *Comm) AllReduceSumInt(v int) int {
	g := c.g

	g.mu.Lock()
	g.intSum += v
	g.mu.Unlock()

	g.barrier(nil)

	g.mu.Lock()
	out := g.intSum
	g.mu.Unlock()

	g.barrier(func() { g.intSum = 0 })
	return out
}

// barrier is a reusable phase barrier. The last worker to arrive runs onLast
// (if non-nil) while still holding the group lock, then releases everyone.
func (g *Group) barrier(onLast func()) {
	g.mu.Lock()
	phase := g.phase
	g.arrived++
	if g.arrived == g.size {
		if onLast != nil {
			onLast()
		}
		g.arrived = 0
		g.phase++
		g.cond.Broadcast()
	} else {
		for g.phase == phase {
			g.cond.Wait()
		}
	}
	g.mu.Unlock()
}

// Run spawns size workers, hands each its communicator, and waits for all of
// them. Worker errors are joined; a worker returning an error does not
// release the others early, so fn must not abandon collective calls on its
// own error paths unless every worker does.
func Run(size int, fn func(c *Comm) error) error {
	g, err := NewGroup(size)
	if err != nil {
		return err
	}

	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		comm, err := g.Comm(rank)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(rank int, comm *Comm) {
			defer wg.Done()
			errs[rank] = fn(comm)
		}(rank, comm)
	}
	wg.Wait()
	return errors.Join(errs...)
}
