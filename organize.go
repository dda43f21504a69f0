package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/saracen/walker"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Options parametrizes one organizing run
type Options struct {
	InputFolder  string
	OutputFolder string
	Workers      int
	UseCache     bool
	Debug        bool
	ShowProgress bool
	FileTypes    []string
}

// Summary aggregates the per-file outcomes of a run
type Summary struct {
	TotalFiles int
	Processed  int
	Skipped    int
	Errors     int
	Duration   time.Duration
	CacheSize  int
	Cancelled  bool
}

// defaultWorkerCount returns the default pool size: a small multiple of the
// available cores, capped
func defaultWorkerCount() int {
	n := runtime.NumCPU() * 2
	if n > 32 {
		n = 32
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ProgressTracker tracks processing counters with thread safety
type ProgressTracker struct {
	Total     int
	Processed int
	Skipped   int
	Failed    int
	StartTime time.Time
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		Total:     total,
		StartTime: time.Now(),
	}
}

// Update records one finished file
func (pt *ProgressTracker) Update(status Status) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	switch status {
	case StatusProcessed:
		pt.Processed++
	case StatusSkipped:
		pt.Skipped++
	case StatusFailed:
		pt.Failed++
	}
}

// Stats returns the current counters
func (pt *ProgressTracker) Stats() (processed, skipped, failed int, elapsed time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.Processed, pt.Skipped, pt.Failed, time.Since(pt.StartTime)
}

// Organizer drives a full run: scan, fan out to workers, aggregate
type Organizer struct {
	opts       Options
	dispatcher *Dispatcher
	cache      *GeocodeCache
	log        *zap.SugaredLogger
}

// NewOrganizer creates an organizer for one run
func NewOrganizer(opts Options, dispatcher *Dispatcher, cache *GeocodeCache, log *zap.SugaredLogger) *Organizer {
	if opts.Workers < 1 {
		opts.Workers = defaultWorkerCount()
	}
	return &Organizer{
		opts:       opts,
		dispatcher: dispatcher,
		cache:      cache,
		log:        log,
	}
}

// Run processes every file under the input folder with a bounded worker
// pool and blocks until all submitted files complete. Cancelling the context
// stops submission of new work; in-flight files finish.
func (o *Organizer) Run(ctx context.Context) (Summary, error) {
	started := time.Now()

	if err := os.MkdirAll(o.opts.OutputFolder, 0755); err != nil {
		return Summary{}, fmt.Errorf("failed to create output folder: %v", err)
	}

	files, err := collectFiles(o.opts.InputFolder)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to scan input folder: %v", err)
	}

	o.log.Infow("starting media organization",
		"source", o.opts.InputFolder,
		"target", o.opts.OutputFolder,
		"files", len(files),
		"workers", o.opts.Workers)

	progress := NewProgressTracker(len(files))

	var bar *progressbar.ProgressBar
	if o.opts.ShowProgress {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Processing media"),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
		)
	}

	jobs := make(chan WorkJob)
	results := make(chan WorkResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < o.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := o.dispatcher.Process(ctx, job)
				results <- result
			}
		}()
	}

	// Submit jobs until done or cancelled; workers drain what was submitted
	go func() {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- WorkJob{Path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		progress.Update(result.Status)
		if bar != nil {
			_ = bar.Add(1)
		}

		switch result.Status {
		case StatusFailed:
			o.log.Warnw("file failed", "file", result.Job.Path, "error", result.Err)
		default:
			o.log.Debugw(result.Message, "duration", result.Duration)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	processed, skipped, failed, _ := progress.Stats()
	summary := Summary{
		TotalFiles: len(files),
		Processed:  processed,
		Skipped:    skipped,
		Errors:     failed,
		Duration:   time.Since(started),
		Cancelled:  ctx.Err() != nil,
	}
	if o.cache != nil {
		summary.CacheSize = o.cache.Len()
	}

	o.logSummary(summary)
	return summary, nil
}

// logSummary prints the end-of-run statistics
func (o *Organizer) logSummary(s Summary) {
	filesPerSecond := 0.0
	if s.Duration > 0 {
		filesPerSecond = float64(s.Processed) / s.Duration.Seconds()
	}

	o.log.Infow("media organization summary",
		"total_files", s.TotalFiles,
		"processed", s.Processed,
		"skipped", s.Skipped,
		"errors", s.Errors,
		"duration", s.Duration.Round(time.Millisecond),
		"files_per_second", fmt.Sprintf("%.2f", filesPerSecond),
		"cancelled", s.Cancelled)

	if o.cache != nil {
		o.log.Infow("geocoding cache size", "locations", o.cache.Len())
	}
}

// collectFiles walks the input tree and returns every regular file, sorted
// for deterministic submission order
func collectFiles(root string) ([]string, error) {
	var mu sync.Mutex
	var files []string

	err := walker.Walk(root, func(pathname string, fi os.FileInfo) error {
		if fi.IsDir() {
			return nil
		}
		mu.Lock()
		files = append(files, pathname)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
