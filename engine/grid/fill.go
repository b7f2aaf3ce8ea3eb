package grid

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// minParallelCells is the grid size below which Fill seeds on the calling goroutine.
const minParallelCells = 4096

// Filler seeds patterns for large grids by splitting rows across a reusable worker pool.
type Filler interface {
	// Fill builds a pattern for g by evaluating seed once per cell.
	//
	// Parameters:
	//   - g: the grid to build a pattern for
	//   - seed: the per-cell seeding function
	//
	// Returns:
	//   - Pattern: a pattern with exactly g.Cells() entries
	Fill(g Grid, seed Seeder) Pattern
}

type filler struct {
	workers int
	pool    worker.DynamicWorkerPool
}

var _ Filler = &filler{}

// NewFiller creates a Filler backed by a dynamic worker pool. A non-positive worker count uses
// one less than the number of CPUs, with a minimum of one.
func NewFiller(workers int) Filler {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	return &filler{
		workers: workers,
		pool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
	}
}

var (
	defaultFiller     Filler
	defaultFillerOnce sync.Once
)

// Fill seeds a pattern using the package level Filler.
func Fill(g Grid, seed Seeder) Pattern {
	defaultFillerOnce.Do(func() {
		defaultFiller = NewFiller(0)
	})
	return defaultFiller.Fill(g, seed)
}

func (f *filler) Fill(g Grid, seed Seeder) Pattern {
	if g.Validate() != nil {
		return Pattern{}
	}
	p := make(Pattern, g.Cells())
	if g.Cells() < minParallelCells || f.workers == 1 {
		fillRows(g, seed, p, 0, g.Height)
		return p
	}

	// Each task owns a disjoint band of rows, so tasks never write the same element.
	// The WaitGroup is the barrier; the pool itself is never drained.
	rowsPerTask := max(g.Height/uint32(f.workers), 1)
	var wg sync.WaitGroup
	taskID := 0
	for start := uint32(0); start < g.Height; start += rowsPerTask {
		end := min(start+rowsPerTask, g.Height)
		wg.Add(1)
		from, to := start, end
		f.pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				fillRows(g, seed, p, from, to)
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()
	return p
}

func fillRows(g Grid, seed Seeder, p Pattern, from, to uint32) {
	for i := from * g.Width; i < to*g.Width; i++ {
		p[i] = seed(g, i)
	}
}
