package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for parallel batch processing.
type ParallelConfig struct {
	MaxWorkers       int                      // Number of parallel workers (0 = runtime.NumCPU())
	ContinueOnError  bool                     // Keep processing remaining files after a failure
	ProgressCallback ProgressCallback         // Optional progress reporting
	ErrorHandler     func(int, string, error) // Optional per-file error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers:      runtime.NumCPU(),
		ContinueOnError: true,
	}
}

// fileJob represents a single file processing job.
type fileJob struct {
	index int
	path  string
}

// fileOutcome represents the result of processing a single file.
type fileOutcome struct {
	index  int
	result *FileResult
	err    error
}

// ProcessFilesParallel processes multiple files in parallel using a worker
// pool. Results come back in input order; failed entries are nil. Without
// ContinueOnError, the first failure cancels the remaining work.
func (p *Pipeline) ProcessFilesParallel(ctx context.Context, paths []string, config ParallelConfig) ([]*FileResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files provided")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.MaxWorkers > len(paths) {
		config.MaxWorkers = len(paths)
	}

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(paths))
		defer config.ProgressCallback.OnComplete()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan fileJob, len(paths))
	outcomes := make(chan fileOutcome, len(paths))

	var wg sync.WaitGroup
	for range config.MaxWorkers {
		wg.Add(1)
		go p.worker(ctx, jobs, outcomes, &wg)
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- fileJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Aggregate by index so output order matches input order regardless of
	// worker scheduling.
	results := make([]*FileResult, len(paths))
	errs := make([]error, len(paths))
	processed := 0
	for outcome := range outcomes {
		results[outcome.index] = outcome.result
		errs[outcome.index] = outcome.err
		processed++

		if config.ProgressCallback != nil {
			config.ProgressCallback.OnProgress(processed, len(paths))
			if outcome.err != nil {
				config.ProgressCallback.OnError(outcome.index, outcome.err)
			}
		}
		if outcome.err != nil && !config.ContinueOnError {
			cancel()
		}
	}

	if err := ctx.Err(); err != nil && errors.Is(err, context.Canceled) {
		// Cancellation triggered by a failure below reports that failure;
		// external cancellation surfaces as-is.
		if firstErr := firstError(paths, errs, config); firstErr != nil {
			return results, firstErr
		}
		return nil, err
	} else if err != nil {
		return nil, err
	}

	return results, firstError(paths, errs, config)
}

func firstError(paths []string, errs []error, config ParallelConfig) error {
	var first error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = fmt.Errorf("file %d (%s): %w", i, paths[i], err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, paths[i], err)
		}
	}
	return first
}

// worker processes files from the jobs channel.
func (p *Pipeline) worker(ctx context.Context, jobs <-chan fileJob, outcomes chan<- fileOutcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			result, err := p.ProcessFile(ctx, job.path)
			select {
			case outcomes <- fileOutcome{index: job.index, result: result, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// BatchStats holds statistics about a finished batch run.
type BatchStats struct {
	TotalFiles       int           `json:"total_files"`
	ProcessedFiles   int           `json:"processed_files"`
	FailedFiles      int           `json:"failed_files"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerFile   time.Duration `json:"average_per_file_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateBatchStats summarizes a batch run.
func CalculateBatchStats(results []*FileResult, duration time.Duration, workerCount int) BatchStats {
	processed := 0
	for _, r := range results {
		if r != nil {
			processed++
		}
	}

	stats := BatchStats{
		TotalFiles:     len(results),
		ProcessedFiles: processed,
		FailedFiles:    len(results) - processed,
		WorkerCount:    workerCount,
		TotalDuration:  duration,
	}
	if processed > 0 && duration > 0 {
		stats.AveragePerFile = duration / time.Duration(processed)
		stats.ThroughputPerSec = float64(processed) / duration.Seconds()
	}
	return stats
}
