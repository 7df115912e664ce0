package indexing

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codegraph/internal/engine/indexer"
	"codegraph/internal/shared/observability"
)

// Stats summarizes one index pass.
type Stats struct {
	FileCount        int
	ErrorCount       int
	SkippedGenerated int
	Duration         time.Duration
}

// ParallelIndexer fans file batches out to a bounded worker pool. Workers
// write only into their own batch slot; the caller merges slots in input
// order, so the merged output is deterministic regardless of scheduling.
type ParallelIndexer struct {
	workers   int
	batchSize int
}

func NewParallelIndexer(workers, batchSize int) *ParallelIndexer {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &ParallelIndexer{workers: workers, batchSize: batchSize}
}

// IndexAll reads and indexes every file under root. Per-file failures degrade
// to errors inside the results; they never abort the pass. Results are in
// file order.
func (p *ParallelIndexer) IndexAll(ctx context.Context, root string, files []string, registry *indexer.Registry) ([]indexer.Result, Stats) {
	start := time.Now()

	batches := make([][]string, 0, (len(files)+p.batchSize-1)/p.batchSize)
	for i := 0; i < len(files); i += p.batchSize {
		end := i + p.batchSize
		if end > len(files) {
			end = len(files)
		}
		batches = append(batches, files[i:end])
	}

	outputs := make([]batchOutput, len(batches))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outputs[idx] = p.indexBatch(ctx, root, batches[idx], registry)
			}
		}()
	}
	for idx := range batches {
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	var merged []indexer.Result
	stats := Stats{}
	for _, out := range outputs {
		merged = append(merged, out.results...)
		stats.FileCount += out.stats.FileCount
		stats.ErrorCount += out.stats.ErrorCount
		stats.SkippedGenerated += out.stats.SkippedGenerated
	}
	stats.Duration = time.Since(start)
	return merged, stats
}

type batchOutput struct {
	results []indexer.Result
	stats   Stats
}

func (p *ParallelIndexer) indexBatch(ctx context.Context, root string, batch []string, registry *indexer.Registry) (out batchOutput) {
	for _, rel := range batch {
		if ctx.Err() != nil {
			return
		}
		result, skipped := indexOne(root, rel, registry)
		if skipped {
			out.stats.SkippedGenerated++
			continue
		}
		out.stats.FileCount++
		out.stats.ErrorCount += len(result.Errors)
		out.results = append(out.results, result)
	}
	return
}

// indexOne reads and indexes a single file. The bool result reports a
// generated-file skip.
func indexOne(root, rel string, registry *indexer.Registry) (indexer.Result, bool) {
	ix := registry.ForFile(rel)

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		observability.IndexErrorsTotal.Inc()
		return indexer.Result{Errors: []indexer.IndexError{{Path: rel, Message: err.Error()}}}, false
	}
	if IsGeneratedFile(content) {
		slog.Debug("skipping generated file", "path", rel)
		return indexer.Result{}, true
	}

	start := time.Now()
	result, err := ix.IndexFile(rel, content)
	observability.IndexingDuration.WithLabelValues(ix.Language()).Observe(time.Since(start).Seconds())
	if err != nil {
		result.Errors = append(result.Errors, indexer.IndexError{Path: rel, Message: err.Error()})
	}
	for range result.Errors {
		observability.IndexErrorsTotal.Inc()
	}
	return result, false
}
