// Package crawler drives the walk-fetch-extract-checkpoint loop.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"imovelscan/config"
	"imovelscan/extractor"
	"imovelscan/fetcher"
	"imovelscan/models"
	"imovelscan/walker"
)

// Fetcher retrieves raw HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Walker yields listing URLs page by page.
type Walker interface {
	Discover(ctx context.Context) (walker.PageCursor, error)
	Next(ctx context.Context) ([]string, error)
	Page() int
}

// Store accumulates records and persists crawl progress.
type Store interface {
	Upsert(rec *models.ListingRecord) error
	Snapshot() error
	SetLastPage(page int)
	AddFailure()
	HasURL(url string) bool
	Len() int
}

// ExtractFunc turns a detail page into a record.
type ExtractFunc func(html, url string) (*models.ListingRecord, error)

// Orchestrator runs a single sequential crawl. Per-listing failures are
// counted and skipped; structural failures and an exceeded skip budget
// abort the run. Either way FINALIZING flushes a last snapshot.
type Orchestrator struct {
	cfg     *config.Config
	fetch   Fetcher
	walker  Walker
	store   Store
	metrics *Metrics
	extract ExtractFunc

	mu    sync.Mutex
	state models.RunState

	attempted     int
	upserted      int
	skipped       int
	alreadyStored int
	failuresBy    map[string]int
}

// New builds an orchestrator over the given collaborators.
func New(cfg *config.Config, fetch Fetcher, walk Walker, store Store, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		fetch:      fetch,
		walker:     walk,
		store:      store,
		metrics:    metrics,
		extract:    extractor.Extract,
		state:      models.StateInit,
		failuresBy: make(map[string]int),
	}
}

// SetExtract replaces the extraction function.
func (o *Orchestrator) SetExtract(fn ExtractFunc) {
	if fn != nil {
		o.extract = fn
	}
}

// State returns the current run state.
func (o *Orchestrator) State() models.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(state models.RunState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

// Run executes the crawl to completion or abort. The returned result is
// always populated; the error is the abort cause, nil on a clean finish.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	o.setState(models.StateDiscovering)
	abortErr := o.crawl(ctx)

	o.setState(models.StateFinalizing)
	if err := o.store.Snapshot(); err != nil {
		slog.Warn("final snapshot failed", slog.Any("error", err))
	}

	final := models.StateDone
	if abortErr != nil {
		final = models.StateAborted
	}
	o.setState(final)

	result := &models.RunResult{
		State:          final,
		StartTime:      start,
		EndTime:        time.Now(),
		PagesWalked:    o.walker.Page(),
		Attempted:      o.attempted,
		Upserted:       o.upserted,
		Skipped:        o.skipped,
		AlreadyStored:  o.alreadyStored,
		RetryCount:     o.metrics.Retries(),
		FailuresByType: o.snapshotFailures(),
	}

	if abortErr != nil {
		result.AbortCause = abortErr.Error()
		slog.Error("crawl aborted",
			slog.String("cause", abortErr.Error()),
			slog.Int("pages", result.PagesWalked),
			slog.Int("records", o.store.Len()),
		)
		return result, abortErr
	}

	slog.Info("crawl complete",
		slog.Int("pages", result.PagesWalked),
		slog.Int("records", o.store.Len()),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (o *Orchestrator) crawl(ctx context.Context) error {
	cursor, err := o.walker.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover index: %w", err)
	}
	slog.Info("index discovered", slog.Int("total_pages", cursor.TotalPages))

	o.setState(models.StateCrawling)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		urls, err := o.walker.Next(ctx)
		if err != nil {
			return fmt.Errorf("walk index: %w", err)
		}
		if urls == nil {
			return nil
		}

		for _, url := range urls {
			if err := ctx.Err(); err != nil {
				return err
			}
			if o.store.HasURL(url) {
				o.alreadyStored++
				o.metrics.IncListing("already_stored")
				continue
			}

			o.attempted++
			rec, err := o.processListing(ctx, url)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := o.recordSkip(url, err); err != nil {
					return err
				}
				continue
			}

			if err := o.store.Upsert(rec); err != nil {
				if err := o.recordSkip(url, err); err != nil {
					return err
				}
				continue
			}
			o.upserted++
			o.metrics.IncListing("extracted")
		}

		o.store.SetLastPage(o.walker.Page())
		o.metrics.IncPage()
	}
}

func (o *Orchestrator) processListing(ctx context.Context, url string) (*models.ListingRecord, error) {
	html, err := o.fetch.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return o.extract(html, url)
}

// recordSkip counts a per-listing failure. It returns an error only when
// the accumulated skip ratio crosses the configured budget, which treats a
// high failure rate as a structural break rather than isolated noise.
func (o *Orchestrator) recordSkip(url string, cause error) error {
	o.skipped++
	o.store.AddFailure()
	label := failureLabel(cause)
	o.failuresBy[label]++
	o.metrics.IncListing("skipped")

	slog.Warn("listing skipped",
		slog.String("url", url),
		slog.String("category", label),
		slog.Any("error", cause),
	)

	if o.attempted >= o.cfg.MinAttempts {
		ratio := float64(o.skipped) / float64(o.attempted)
		if ratio > o.cfg.MaxSkipRatio {
			return fmt.Errorf("skip ratio %.2f exceeded budget %.2f after %d attempts", ratio, o.cfg.MaxSkipRatio, o.attempted)
		}
	}
	return nil
}

func (o *Orchestrator) snapshotFailures() map[string]int {
	out := make(map[string]int, len(o.failuresBy))
	for k, v := range o.failuresBy {
		out[k] = v
	}
	return out
}

func failureLabel(err error) string {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return "fetch"
	}
	var extractErr *extractor.ExtractionError
	if errors.As(err, &extractErr) {
		return "extraction"
	}
	var structErr *walker.StructureChangedError
	if errors.As(err, &structErr) {
		return "structure_changed"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "other"
}
