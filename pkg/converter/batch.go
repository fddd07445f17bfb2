package converter

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/psantana5/mediaconv/pkg/cancel"
)

// memoryPause is how long scheduling waits after a GC hint when memory is
// over threshold
const memoryPause = 500 * time.Millisecond

// ConvertBatch runs jobs in fixed-size concurrency chunks. One job's
// failure never aborts its siblings; every started job contributes a result
// entry. Cancellation through opts.Token stops scheduling of not-yet-started
// jobs, which are then absent from the results.
func (c *Converter) ConvertBatch(ctx context.Context, jobs []Job, opts BatchOptions) BatchOutcome {
	chunkSize := opts.MaxConcurrent
	if chunkSize < 1 {
		chunkSize = 1
	}

	outcome := BatchOutcome{TotalCount: len(jobs)}
	watcher := newMemoryWatcher()
	completed := 0

	for start := 0; start < len(jobs); start += chunkSize {
		if opts.Token.Cancelled() || ctx.Err() != nil {
			outcome.Cancelled = true
			break
		}

		// Best-effort memory throttle between chunks: a GC hint and a short
		// pause, not a hard guarantee.
		if rss := watcher.sample(); opts.MemoryThresholdBytes > 0 && rss > opts.MemoryThresholdBytes {
			c.logger.Warn("memory over threshold before chunk, pausing",
				"rss_bytes", rss, "threshold_bytes", opts.MemoryThresholdBytes)
			runtime.GC()
			select {
			case <-time.After(memoryPause):
			case <-opts.Token.Done():
			case <-ctx.Done():
			}
		}

		end := start + chunkSize
		if end > len(jobs) {
			end = len(jobs)
		}
		chunk := jobs[start:end]
		results := make([]Outcome, len(chunk))

		var wg sync.WaitGroup
		for i := range chunk {
			job := chunk[i]
			// Propagate batch cancellation into running jobs. A job's own
			// token still works independently.
			if job.Token == nil {
				job.Token = cancel.NewToken()
			}
			opts.Token.OnCancel(job.Token.Cancel)

			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				results[slot] = c.Convert(ctx, job)
			}(i)
		}
		wg.Wait()
		watcher.sample()

		for _, result := range results {
			outcome.Results = append(outcome.Results, result)
			completed++
			if result.Success {
				outcome.CompletedCount++
			}
			if opts.OnBatchProgress != nil {
				opts.OnBatchProgress(BatchProgress{
					Completed: completed,
					Total:     len(jobs),
					Last:      result,
				})
			}
		}
	}

	if opts.Token.Cancelled() {
		outcome.Cancelled = true
	}
	outcome.PeakMemoryBytes = watcher.peak()
	return outcome
}

// memoryWatcher samples the process RSS and accumulates a monotonic
// maximum. Atomic max accumulation keeps it lock-free; readers may see a
// momentarily stale peak, never a lower one than they wrote.
type memoryWatcher struct {
	proc    *process.Process
	peakRSS atomic.Uint64
}

func newMemoryWatcher() *memoryWatcher {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &memoryWatcher{proc: proc}
}

// sample reads current RSS, folds it into the peak and returns it. Returns
// 0 when process introspection is unavailable.
func (w *memoryWatcher) sample() uint64 {
	if w.proc == nil {
		return 0
	}
	info, err := w.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	rss := info.RSS
	for {
		current := w.peakRSS.Load()
		if rss <= current || w.peakRSS.CompareAndSwap(current, rss) {
			break
		}
	}
	return rss
}

func (w *memoryWatcher) peak() uint64 {
	return w.peakRSS.Load()
}
