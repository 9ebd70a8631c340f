package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pdf-translator/internal/logger"
)

// ProgressFunc reports translation progress after each completed batch.
// completed counts blocks, not batches.
type ProgressFunc func(completed, total int)

// Batcher groups blocks into context-window-sized batches and drives a
// Service with retry, exponential backoff and per-block fallback.
type Batcher struct {
	svc           Service
	contextWindow int
	concurrency   int
	maxRetries    int
	retryDelay    time.Duration
}

// BatcherConfig holds Batcher options. Zero values fall back to the
// package defaults.
type BatcherConfig struct {
	ContextWindow int
	Concurrency   int
	MaxRetries    int
}

// NewBatcher creates a Batcher driving the given service.
func NewBatcher(svc Service, cfg BatcherConfig) *Batcher {
	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Batcher{
		svc:           svc,
		contextWindow: contextWindow,
		concurrency:   concurrency,
		maxRetries:    maxRetries,
		retryDelay:    BaseRetryDelay,
	}
}

// ContextWindow returns the configured context window size.
func (b *Batcher) ContextWindow() int { return b.contextWindow }

// Concurrency returns the configured concurrency level.
func (b *Batcher) Concurrency() int { return b.concurrency }

// MergeBatches groups blocks into batches whose combined size, including
// separators, stays below the context window. A single oversized block
// gets a batch of its own. Block order is preserved and every input
// block lands in exactly one batch.
func (b *Batcher) MergeBatches(blocks []Block) [][]Block {
	if len(blocks) == 0 {
		return nil
	}

	var batches [][]Block
	var currentBatch []Block
	currentBatchSize := 0
	separatorSize := len(BatchSeparator)

	for _, block := range blocks {
		blockSize := len(block.Text)

		// A block that alone exceeds the window gets its own batch.
		if blockSize >= b.contextWindow {
			if len(currentBatch) > 0 {
				batches = append(batches, currentBatch)
				currentBatch = nil
				currentBatchSize = 0
			}
			batches = append(batches, []Block{block})
			continue
		}

		additionalSize := blockSize
		if len(currentBatch) > 0 {
			additionalSize += separatorSize
		}

		if currentBatchSize+additionalSize > b.contextWindow {
			if len(currentBatch) > 0 {
				batches = append(batches, currentBatch)
			}
			currentBatch = []Block{block}
			currentBatchSize = blockSize
		} else {
			currentBatch = append(currentBatch, block)
			currentBatchSize += additionalSize
		}
	}

	if len(currentBatch) > 0 {
		batches = append(batches, currentBatch)
	}
	return batches
}

// batchText joins the batch into a single request payload.
func (b *Batcher) batchText(batch []Block) string {
	parts := make([]string, len(batch))
	for i, block := range batch {
		parts[i] = block.Text
	}
	return strings.Join(parts, BatchSeparator)
}

// splitTranslatedText splits the translated text by BatchSeparator and
// pads or merges so the number of parts matches the expected count.
func (b *Batcher) splitTranslatedText(translatedText string, expectedCount int) []string {
	parts := strings.Split(translatedText, BatchSeparator)

	if len(parts) == expectedCount {
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}

	if len(parts) < expectedCount {
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		for len(parts) < expectedCount {
			parts = append(parts, "")
		}
		return parts
	}

	// More parts than expected: the separator leaked into a translation.
	// Merge the extras into the last slot.
	result := make([]string, expectedCount)
	for i := 0; i < expectedCount-1; i++ {
		result[i] = strings.TrimSpace(parts[i])
	}
	remaining := parts[expectedCount-1:]
	result[expectedCount-1] = strings.TrimSpace(strings.Join(remaining, BatchSeparator))
	return result
}

// Translate translates all blocks. Batches run concurrently up to the
// configured limit; results come back in input order. A batch that
// fails after retries degrades to per-block translation, and blocks
// that still fail yield empty translations. The whole call fails only
// when an entire batch is lost or the context is cancelled.
func (b *Batcher) Translate(ctx context.Context, blocks []Block, progress ProgressFunc) ([]Result, error) {
	if len(blocks) == 0 {
		return nil, nil
	}

	batches := b.MergeBatches(blocks)
	logger.Debug("starting batch translation",
		logger.Int("totalBlocks", len(blocks)),
		logger.Int("batchCount", len(batches)),
		logger.Int("contextWindow", b.contextWindow))

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		sem          = make(chan struct{}, b.concurrency)
		batchResults = make([][]Result, len(batches))
		batchErrs    = make([]error, len(batches))
		completed    int
	)
	total := len(blocks)

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []Block) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results, err := b.translateBatchResilient(ctx, batch)

			mu.Lock()
			batchResults[idx] = results
			batchErrs[idx] = err
			completed += len(batch)
			done := completed
			mu.Unlock()

			if err == nil && progress != nil {
				progress(done, total)
			}
		}(i, batch)
	}
	wg.Wait()

	results := make([]Result, 0, len(blocks))
	for i := range batches {
		if batchErrs[i] != nil {
			return nil, batchErrs[i]
		}
		results = append(results, batchResults[i]...)
	}
	return results, nil
}

// TranslateCached is Translate with a read-through cache. Hits skip the
// service entirely; fresh translations are written back. Results follow
// the input block order.
func (b *Batcher) TranslateCached(ctx context.Context, blocks []Block, cache *TranslationCache, progress ProgressFunc) ([]Result, error) {
	if cache == nil {
		return b.Translate(ctx, blocks, progress)
	}

	cached, uncached := cache.Filter(blocks)
	total := len(blocks)
	if progress != nil && len(cached) > 0 {
		progress(len(cached), total)
	}
	logger.Debug("translation cache filtered",
		logger.Int("cached", len(cached)),
		logger.Int("uncached", len(uncached)))

	offsetProgress := progress
	if progress != nil {
		base := len(cached)
		offsetProgress = func(done, _ int) {
			progress(base+done, total)
		}
	}

	fresh, err := b.Translate(ctx, uncached, offsetProgress)
	if err != nil {
		return nil, err
	}
	for _, r := range fresh {
		if r.Translated != "" {
			cache.Set(r.Text, r.Translated)
		}
	}

	byID := make(map[string]Result, len(cached)+len(fresh))
	for _, r := range cached {
		byID[r.ID] = r
	}
	for _, r := range fresh {
		byID[r.ID] = r
	}

	results := make([]Result, 0, len(blocks))
	for _, block := range blocks {
		if r, ok := byID[block.ID]; ok {
			results = append(results, r)
		} else {
			results = append(results, Result{Block: block})
		}
	}
	return results, nil
}

// translateBatchResilient tries the batch as a whole, then degrades to
// per-block translation when the batch keeps failing.
func (b *Batcher) translateBatchResilient(ctx context.Context, batch []Block) ([]Result, error) {
	results, err := b.translateBatchWithRetry(ctx, batch)
	if err == nil {
		return results, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.Warn("batch translation failed, falling back to single-block translation",
		logger.Int("blocksInBatch", len(batch)),
		logger.Err(err))
	return b.translateIndividually(ctx, batch, err)
}

// translateBatchWithRetry calls the service with exponential backoff.
func (b *Batcher) translateBatchWithRetry(ctx context.Context, batch []Block) ([]Result, error) {
	var lastErr error
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		translated, err := b.svc.Translate(ctx, b.batchText(batch))
		if err == nil {
			parts := b.splitTranslatedText(translated, len(batch))
			results := make([]Result, len(batch))
			for i, block := range batch {
				results[i] = Result{Block: block, Translated: parts[i]}
			}
			return results, nil
		}

		lastErr = err
		logger.Warn("translation attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("maxRetries", b.maxRetries),
			logger.Err(err))

		if !isRetryableError(err) {
			break
		}
		if attempt < b.maxRetries {
			if err := sleepContext(ctx, b.backoffDelay(attempt)); err != nil {
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

// translateIndividually retries each block on its own. Single blocks
// have nothing left to degrade to, so their batch error stands.
func (b *Batcher) translateIndividually(ctx context.Context, blocks []Block, batchErr error) ([]Result, error) {
	if len(blocks) == 1 {
		return nil, fmt.Errorf("translation failed for single block after retries: %w", batchErr)
	}

	results := make([]Result, 0, len(blocks))
	failed := 0
	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		single, err := b.translateBatchWithRetry(ctx, []Block{block})
		if err != nil {
			logger.Warn("single block translation failed",
				logger.String("blockID", block.ID),
				logger.Err(err))
			failed++
			results = append(results, Result{Block: block})
			continue
		}
		results = append(results, single...)
	}

	if failed == len(blocks) {
		return nil, fmt.Errorf("all %d blocks in batch failed to translate: %w", failed, batchErr)
	}
	if failed > 0 {
		logger.Warn("some blocks failed to translate",
			logger.Int("failedCount", failed),
			logger.Int("totalCount", len(blocks)))
	}
	return results, nil
}

// isRetryableError determines if an error should trigger a retry.
// Rate limits, server errors and transport failures are retryable;
// authentication failures and invalid requests are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable()
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "reset by peer") {
		return true
	}
	return false
}

// backoffDelay doubles with each attempt (2s, 4s, 8s, ...) capped at 30s.
func (b *Batcher) backoffDelay(attempt int) time.Duration {
	delay := b.retryDelay * time.Duration(1<<uint(attempt-1))
	const maxDelay = 30 * time.Second
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
