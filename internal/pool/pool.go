// Package pool runs per-archive pipelines with bounded parallelism.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/unzipd/unzipd/internal/extract"
)

// Task processes one archive and returns its result. Tasks must not panic
// across the boundary; a panic is converted into a failed result so one
// archive can never take down its siblings.
type Task func(ctx context.Context, archivePath string) extract.Result

// Run executes task for every candidate with at most workers running
// concurrently. Results are delivered on the returned channel in completion
// order, exactly once per candidate; the channel is closed after the last
// result. A workers value below 1 is treated as 1.
func Run(ctx context.Context, candidates <-chan string, workers int, task Task) <-chan extract.Result {
	if workers < 1 {
		workers = 1
	}

	out := make(chan extract.Result)
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for path := range candidates {
				result := runOne(ctx, task, path)
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// runOne invokes the task, converting a panic into a failed result.
func runOne(ctx context.Context, task Task, path string) (result extract.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = extract.Result{
				ArchivePath: path,
				Message:     fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return task(ctx, path)
}
