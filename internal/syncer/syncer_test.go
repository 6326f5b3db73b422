package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedkeep/internal/fetch"
	"feedkeep/internal/filter"
	"feedkeep/internal/kvstore"
	"feedkeep/internal/store"
	"feedkeep/internal/syncer"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <item>
      <title>First Post</title>
      <link>https://example.com/1</link>
      <guid>guid-1</guid>
      <category>Tech</category>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/2</link>
      <guid>guid-2</guid>
    </item>
  </channel>
</rss>`

// fakeFetcher routes by URL and instruments in-flight concurrency.
type fakeFetcher struct {
	mu       sync.Mutex
	results  map[string]fetch.Result
	requests map[string]fetch.Request

	delay    time.Duration
	inflight atomic.Int64
	peak     atomic.Int64
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		results:  make(map[string]fetch.Result),
		requests: make(map[string]fetch.Request),
	}
}

func (f *fakeFetcher) set(url string, result fetch.Result) {
	f.mu.Lock()
	f.results[url] = result
	f.mu.Unlock()
}

func (f *fakeFetcher) Fetch(ctx context.Context, req fetch.Request) fetch.Result {
	current := f.inflight.Add(1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	defer f.inflight.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.requests[req.URL] = req
	result, ok := f.results[req.URL]
	f.mu.Unlock()
	if !ok {
		return fetch.Result{Status: fetch.StatusFailure, Err: errors.New("no route")}
	}
	return result
}

func newHarness(t *testing.T, concurrency int) (*store.Store, *fakeFetcher, *syncer.Orchestrator) {
	t.Helper()
	s := store.New(kvstore.NewMemory(), store.Config{})
	engine := filter.New(s, nil)
	s.SetInvalidator(engine)
	fetcher := newFakeFetcher()
	orch := syncer.New(s, engine, fetcher, nil, concurrency)
	return s, fetcher, orch
}

func success(body string) fetch.Result {
	return fetch.Result{Status: fetch.StatusSuccess, Body: []byte(body), ETag: `"v1"`}
}

func TestRefreshAll_MergesNewItems(t *testing.T) {
	s, fetcher, orch := newHarness(t, 4)
	feed, err := s.Subscribe("https://example.com/feed", "")
	require.NoError(t, err)
	fetcher.set(feed.URL, success(sampleRSS))

	report, err := orch.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Feeds, 1)
	require.Equal(t, syncer.OutcomeOK, report.Feeds[0].Outcome)
	require.Equal(t, 2, report.Feeds[0].NewItems)

	items := s.Items(&feed.ID)
	require.Len(t, items, 2)

	got, err := s.Feed(feed.ID)
	require.NoError(t, err)
	require.Equal(t, "Example Feed", got.Title)
	require.Equal(t, `"v1"`, *got.ETag)
	require.NotNil(t, got.LastFetched)
}

func TestRefreshAll_BoundedConcurrency(t *testing.T) {
	s, fetcher, orch := newHarness(t, 6)
	fetcher.delay = 20 * time.Millisecond

	for i := 0; i < 20; i++ {
		url := fmt.Sprintf("https://example.com/feed-%d", i)
		_, err := s.Subscribe(url, "")
		require.NoError(t, err)
		fetcher.set(url, success(sampleRSS))
	}

	_, err := orch.RefreshAll(context.Background())
	require.NoError(t, err)
	require.LessOrEqual(t, fetcher.peak.Load(), int64(6), "no more than the ceiling in flight at once")
}

func TestRefreshAll_PartialFailureIsolation(t *testing.T) {
	s, fetcher, orch := newHarness(t, 4)

	feedA, err := s.Subscribe("https://example.com/a", "")
	require.NoError(t, err)
	feedB, err := s.Subscribe("https://example.com/b", "")
	require.NoError(t, err)

	// Seed A with prior state so we can observe it stays untouched.
	fetcher.set(feedA.URL, success(sampleRSS))
	fetcher.set(feedB.URL, success(sampleRSS))
	_, err = orch.RefreshAll(context.Background())
	require.NoError(t, err)
	itemsBefore := s.Items(&feedA.ID)
	feedABefore, err := s.Feed(feedA.ID)
	require.NoError(t, err)

	// Second cycle: A hits a transport error, B succeeds with fresh items.
	fetcher.set(feedA.URL, fetch.Result{Status: fetch.StatusFailure, Err: errors.New("dial timeout")})
	fetcher.set(feedB.URL, success(`<?xml version="1.0"?><rss version="2.0"><channel><title>B</title>
		<item><title>Third</title><guid>guid-3</guid></item></channel></rss>`))

	report, err := orch.RefreshAll(context.Background())
	require.NoError(t, err)

	outcomes := make(map[int64]syncer.FeedReport)
	for _, fr := range report.Feeds {
		outcomes[fr.FeedID] = fr
	}
	require.Equal(t, syncer.OutcomeFailed, outcomes[feedA.ID].Outcome)
	require.Equal(t, "dial timeout", outcomes[feedA.ID].Error)
	require.Equal(t, syncer.OutcomeOK, outcomes[feedB.ID].Outcome)

	// A's stored items and validators are exactly as they were.
	feedAAfter, err := s.Feed(feedA.ID)
	require.NoError(t, err)
	require.Equal(t, feedABefore.ETag, feedAAfter.ETag)
	require.Equal(t, feedABefore.LastFetched, feedAAfter.LastFetched)
	require.Equal(t, itemsBefore, s.Items(&feedA.ID))

	// B gained its new item.
	require.Len(t, s.Items(&feedB.ID), 3)
}

func TestRefreshAll_NotModifiedShortCircuit(t *testing.T) {
	s, fetcher, orch := newHarness(t, 4)
	feed, err := s.Subscribe("https://example.com/feed", "")
	require.NoError(t, err)

	fetcher.set(feed.URL, success(sampleRSS))
	_, err = orch.RefreshAll(context.Background())
	require.NoError(t, err)

	before, err := s.Feed(feed.ID)
	require.NoError(t, err)
	itemsBefore := s.Items(&feed.ID)

	fetcher.set(feed.URL, fetch.Result{Status: fetch.StatusNotModified})
	report, err := orch.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, syncer.OutcomeNotModified, report.Feeds[0].Outcome)

	// Validators are sent on the conditional request.
	fetcher.mu.Lock()
	sent := fetcher.requests[feed.URL]
	fetcher.mu.Unlock()
	require.Equal(t, `"v1"`, sent.ETag)

	after, err := s.Feed(feed.ID)
	require.NoError(t, err)
	require.Equal(t, before.Title, after.Title)
	require.Equal(t, before.IconURL, after.IconURL)
	require.Equal(t, itemsBefore, s.Items(&feed.ID))
	// lastFetched still moves forward.
	require.True(t, after.LastFetched.After(*before.LastFetched) || after.LastFetched.Equal(*before.LastFetched))
}

func TestRefreshAll_AuthFailureLeavesStateAlone(t *testing.T) {
	s, fetcher, orch := newHarness(t, 4)
	feed, err := s.Subscribe("https://example.com/feed", "")
	require.NoError(t, err)

	fetcher.set(feed.URL, success(sampleRSS))
	_, err = orch.RefreshAll(context.Background())
	require.NoError(t, err)

	fetcher.set(feed.URL, fetch.Result{Status: fetch.StatusAuthRequired, Err: errors.New("HTTP 401")})
	report, err := orch.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, syncer.OutcomeAuthFailed, report.Feeds[0].Outcome)
	require.Contains(t, report.Feeds[0].Error, "check credentials")
	require.Len(t, s.Items(&feed.ID), 2)
}

func TestRefreshAll_MalformedPayloadIsZeroNewItems(t *testing.T) {
	s, fetcher, orch := newHarness(t, 4)
	feed, err := s.Subscribe("https://example.com/feed", "")
	require.NoError(t, err)

	fetcher.set(feed.URL, success("this is not a feed"))
	report, err := orch.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, syncer.OutcomeOK, report.Feeds[0].Outcome)
	require.Zero(t, report.Feeds[0].NewItems)
	require.Empty(t, s.Items(&feed.ID))
}

func TestRefreshAll_DropsReentrantCall(t *testing.T) {
	_, _, orch := newHarness(t, 4)
	syncer.SetRefreshing(orch, true)

	_, err := orch.RefreshAll(context.Background())
	require.ErrorIs(t, err, syncer.ErrAlreadyRefreshing)

	syncer.SetRefreshing(orch, false)
	_, err = orch.RefreshAll(context.Background())
	require.NoError(t, err)
}

func TestRefreshFeed_UnknownFeed(t *testing.T) {
	_, _, orch := newHarness(t, 4)
	_, err := orch.RefreshFeed(context.Background(), 42)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatus_TracksLastRefresh(t *testing.T) {
	_, _, orch := newHarness(t, 4)
	require.False(t, orch.Status().IsRefreshing)
	require.Nil(t, orch.Status().LastRefreshedAt)

	_, err := orch.RefreshAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, orch.Status().LastRefreshedAt)
}
