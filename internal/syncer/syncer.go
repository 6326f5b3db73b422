// Package syncer drives the refresh cycle: a bounded fan-out of conditional
// fetches, one merge per feed through the store's single-writer path, and
// auto-actions for whatever came in new.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"feedkeep/internal/fetch"
	"feedkeep/internal/filter"
	"feedkeep/internal/model"
	"feedkeep/internal/parse"
	"feedkeep/internal/secrets"
	"feedkeep/internal/store"
	"feedkeep/pkg/logger"
)

var ErrAlreadyRefreshing = errors.New("refresh already in progress")

// Outcome classifies one feed's refresh result.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNotModified Outcome = "not-modified"
	OutcomeAuthFailed  Outcome = "auth-failed"
	OutcomeFailed      Outcome = "failed"
)

type FeedReport struct {
	FeedID   int64   `json:"feedId"`
	Outcome  Outcome `json:"outcome"`
	NewItems int     `json:"newItems"`
	Error    string  `json:"error,omitempty"`
}

type SyncReport struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Feeds      []FeedReport `json:"feeds"`
}

// Status is the externally visible refresh state.
type Status struct {
	IsRefreshing    bool       `json:"isRefreshing"`
	LastRefreshedAt *time.Time `json:"lastRefreshedAt,omitempty"`
}

type Orchestrator struct {
	store       *store.Store
	engine      *filter.Engine
	fetcher     fetch.Fetcher
	secrets     *secrets.Store
	concurrency int64

	mu              sync.Mutex
	isRefreshing    bool
	lastRefreshedAt *time.Time
	lastReport      *SyncReport
}

func New(st *store.Store, engine *filter.Engine, fetcher fetch.Fetcher, sec *secrets.Store, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 6
	}
	return &Orchestrator{
		store:       st,
		engine:      engine,
		fetcher:     fetcher,
		secrets:     sec,
		concurrency: int64(concurrency),
	}
}

// RefreshAll fetches every subscribed feed with a fixed concurrency ceiling.
// A call arriving while a refresh is in flight is dropped with
// ErrAlreadyRefreshing and the prior report. Each feed's result merges as it
// completes, so an aborted refresh keeps whatever was fully merged; one
// feed's failure never touches another feed's state.
func (o *Orchestrator) RefreshAll(ctx context.Context) (*SyncReport, error) {
	o.mu.Lock()
	if o.isRefreshing {
		prior := o.lastReport
		o.mu.Unlock()
		return prior, ErrAlreadyRefreshing
	}
	o.isRefreshing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.isRefreshing = false
		o.mu.Unlock()
	}()

	feeds := o.store.Feeds()
	logger.Info("refresh started", "module", "syncer", "action", "refresh", "result", "ok", "count", len(feeds))

	report := &SyncReport{StartedAt: time.Now()}
	sem := semaphore.NewWeighted(o.concurrency)

	var (
		wg       sync.WaitGroup
		reportMu sync.Mutex
	)
	for _, feed := range feeds {
		feed := feed
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				logger.Debug("refresh cancelled", "module", "syncer", "action", "refresh", "result", "cancelled", "feed_id", feed.ID, "error", err)
				return
			}
			defer sem.Release(1)

			outcome := o.refreshOne(ctx, feed)
			reportMu.Lock()
			report.Feeds = append(report.Feeds, outcome)
			reportMu.Unlock()
		}()
	}
	wg.Wait()

	report.FinishedAt = time.Now()
	now := report.FinishedAt
	o.mu.Lock()
	o.lastRefreshedAt = &now
	o.lastReport = report
	o.mu.Unlock()

	logger.Info("refresh completed", "module", "syncer", "action", "refresh", "result", "ok", "count", len(feeds))
	return report, nil
}

// RefreshFeed refreshes a single feed outside the full cycle.
func (o *Orchestrator) RefreshFeed(ctx context.Context, feedID int64) (FeedReport, error) {
	feed, err := o.store.Feed(feedID)
	if err != nil {
		return FeedReport{}, err
	}
	return o.refreshOne(ctx, feed), nil
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{IsRefreshing: o.isRefreshing, LastRefreshedAt: o.lastRefreshedAt}
}

func (o *Orchestrator) LastReport() *SyncReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReport
}

// refreshOne runs the fetch+parse for one feed off the serialization point,
// then hands the result to the store. On any failure the feed's stored items
// and validators stay exactly as they were.
func (o *Orchestrator) refreshOne(ctx context.Context, feed model.Feed) FeedReport {
	report := FeedReport{FeedID: feed.ID}

	authHeader := ""
	if o.secrets != nil {
		header, err := o.secrets.AuthHeader(ctx, feed)
		if err != nil {
			logger.Warn("resolve credential failed", "module", "syncer", "action", "refresh", "result", "failed", "feed_id", feed.ID, "error", err)
		} else {
			authHeader = header
		}
	}

	request := fetch.Request{URL: feed.URL, AuthHeader: authHeader}
	if feed.ETag != nil {
		request.ETag = *feed.ETag
	}
	if feed.LastModified != nil {
		request.LastModified = *feed.LastModified
	}

	result := o.fetcher.Fetch(ctx, request)
	switch result.Status {
	case fetch.StatusNotModified:
		report.Outcome = OutcomeNotModified
		if err := o.store.TouchFeed(feed.ID, time.Now()); err != nil {
			report.Error = err.Error()
		}
		logger.Debug("feed not modified", "module", "syncer", "action", "refresh", "result", "skipped", "feed_id", feed.ID)
		return report

	case fetch.StatusAuthRequired:
		report.Outcome = OutcomeAuthFailed
		report.Error = "authentication required, check credentials"
		logger.Warn("feed auth failed", "module", "syncer", "action", "refresh", "result", "failed", "feed_id", feed.ID, "feed_title", feed.Title, "error", result.Err)
		return report

	case fetch.StatusFailure:
		report.Outcome = OutcomeFailed
		if result.Err != nil {
			report.Error = result.Err.Error()
		}
		logger.Error("feed fetch failed", "module", "syncer", "action", "refresh", "result", "failed", "feed_id", feed.ID, "feed_title", feed.Title, "error", result.Err)
		return report
	}

	parsed, ok := parse.Parse(result.Body)
	if !ok {
		// Malformed payload: zero new items, feed unchanged.
		report.Outcome = OutcomeOK
		if err := o.store.TouchFeed(feed.ID, time.Now()); err != nil {
			report.Error = err.Error()
		}
		logger.Warn("feed parse failed", "module", "syncer", "action", "refresh", "result", "skipped", "feed_id", feed.ID, "feed_title", feed.Title)
		return report
	}

	newItems := o.store.Merge(feed.ID, parsed.Items)
	if err := o.store.UpdateFeedMeta(feed.ID, store.FeedMeta{
		Title:        parsed.Title,
		IconURL:      parsed.IconURL,
		ETag:         result.ETag,
		LastModified: result.LastModified,
		FetchedAt:    time.Now(),
	}); err != nil {
		report.Error = err.Error()
	}

	if o.engine != nil {
		o.engine.ApplyAutoActions(ctx, newItems)
	}

	report.Outcome = OutcomeOK
	report.NewItems = len(newItems)
	if report.NewItems > 0 {
		logger.Info("feed refreshed", "module", "syncer", "action", "refresh", "result", "ok", "feed_id", feed.ID, "feed_title", feed.Title, "new", report.NewItems)
	}
	return report
}
