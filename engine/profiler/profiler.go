package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/cellgrid/common"
)

// Profiler tracks frame rate, skipped frames and memory statistics for performance monitoring.
// Outputs stats to the logger at a fixed interval.
type Profiler struct {
	logger         common.Logger
	frameCount     int
	skipCount      int
	totalFrames    uint64
	totalSkipped   uint64
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler reporting once per second.
//
// Parameters:
//   - logger: the logger the statistics are written to
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger common.Logger) *Profiler {
	if logger == nil {
		logger = common.NewDefaultLogger("profiler")
	}
	return &Profiler{
		logger:         logger,
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Skip records a tick that produced no frame, such as one where the surface was unavailable.
func (p *Profiler) Skip() {
	p.skipCount++
	p.totalSkipped++
}

// Totals returns the number of presented and skipped frames since the profiler was created.
//
// Returns:
//   - frames: ticks recorded with Tick
//   - skipped: ticks recorded with Skip
func (p *Profiler) Totals() (frames, skipped uint64) {
	return p.totalFrames, p.totalSkipped
}

// Tick should be called once per presented frame.
// Logs performance statistics when the update interval has elapsed: FPS, skipped frames, heap
// usage, allocation rate, GC count and pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	p.totalFrames++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}
	seconds := max(elapsed.Seconds(), 1e-9)
	fps := float64(p.frameCount) / seconds

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / seconds

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Infof("FPS: %.2f | Skipped: %d | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		fps, p.skipCount, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.frameCount = 0
	p.skipCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
