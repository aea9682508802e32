package stratum

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// IndexFilesParallel indexes files using a three-phase parallel pipeline:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Parse into a BatchedStore per file on a bounded pool.
//	Phase C (serial):   Commit batches to SQLite, compare class signatures.
func (e *Engine) IndexFilesParallel(ctx context.Context, paths []string) (*IndexStats, error) {
	stats := &IndexStats{}
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(ctx, path)
		if err != nil {
			stats.Failed++
			e.logger.Warn("prepare file failed", "path", path, "err", err)
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			stats.Skipped++
			continue
		}
		items = append(items, item)
	}

	// ---- Phase B: Parallel extraction ----
	workers := e.workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(items)))

	type result struct {
		item workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	go func() {
		for _, item := range items {
			item := item
			g.Go(func() error {
				// Per-file failures are reported through resultCh so one
				// bad file does not cancel the others.
				resultCh <- result{item: item, err: e.extractFile(gctx, item)}
				return nil
			})
		}
		g.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for res := range resultCh {
		if err := e.commitFile(res.item, res.err, stats); err != nil {
			stats.Failed++
			e.logger.Warn("index file failed", "path", res.item.path, "err", err)
			errs = append(errs, fmt.Errorf("index %s: %w", res.item.path, err))
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("stratum: parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// extractFile parses a single file into its own BatchedStore. Each call
// uses its own tree-sitter parser, so workers share nothing but the Store
// they read through.
func (e *Engine) extractFile(ctx context.Context, item workItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parsed, err := e.parseFile(ctx, item)
	if err != nil {
		return err
	}
	return saveParsed(item.batch, item.fileID, parsed)
}

func (e *Engine) commitFile(item workItem, extractErr error, stats *IndexStats) error {
	if extractErr != nil {
		return fmt.Errorf("extract: %w", extractErr)
	}
	if err := e.store.CommitBatch(item.batch); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	changed, _, err := e.finishFile(item)
	if err != nil {
		return err
	}
	stats.Indexed++
	stats.addChanged(changed)
	return nil
}
