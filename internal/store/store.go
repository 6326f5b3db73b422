// Package store owns all mutable Feed/FeedItem/FilterRule state. It is the
// single-writer serialization point: fetch and parse workers compute pure
// results and hand them to Merge, so two feeds' merges never interleave.
package store

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"feedkeep/internal/ids"
	"feedkeep/internal/kvstore"
	"feedkeep/internal/model"
	"feedkeep/pkg/logger"
	"feedkeep/pkg/sanitizer"
)

// maxBodyBytes caps stored item body text.
const maxBodyBytes = 64 << 10

// Invalidator is the single cache-invalidation policy hook. The store calls
// it from every mutation entry point so no invalidation site can be missed.
type Invalidator interface {
	InvalidateAll()
	InvalidateItem(itemID int64)
	RemoveItem(itemID int64)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateAll()       {}
func (noopInvalidator) InvalidateItem(int64) {}
func (noopInvalidator) RemoveItem(int64)     {}

// EventKind labels a state change for observers.
type EventKind int

const (
	EventFeedsChanged EventKind = iota
	EventItemsMerged
	EventItemsEvicted
	EventItemUpdated
	EventRulesChanged
)

type Event struct {
	Kind   EventKind
	FeedID int64
	ItemID int64
}

type Config struct {
	PerFeedCap    int
	GlobalCap     int
	RetentionDays int
	LedgerSize    int
	FlushDebounce time.Duration
}

type Store struct {
	mu          sync.Mutex
	cfg         Config
	kv          kvstore.Store
	invalidator Invalidator

	feeds    map[int64]*model.Feed
	items    map[int64]*model.FeedItem
	keyIndex map[string]int64 // dedup key -> item ID

	rules []model.FilterRule

	ledger    []string
	ledgerSet map[string]struct{}

	observers  []chan Event
	flushTimer *time.Timer

	now func() time.Time
}

func New(kv kvstore.Store, cfg Config) *Store {
	if cfg.LedgerSize <= 0 {
		cfg.LedgerSize = 2000
	}
	return &Store{
		cfg:         cfg,
		kv:          kv,
		invalidator: noopInvalidator{},
		feeds:       make(map[int64]*model.Feed),
		items:       make(map[int64]*model.FeedItem),
		keyIndex:    make(map[string]int64),
		ledgerSet:   make(map[string]struct{}),
		now:         time.Now,
	}
}

// SetInvalidator wires the result-cache invalidation policy. Must be called
// before the store is shared across goroutines.
func (s *Store) SetInvalidator(inv Invalidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv != nil {
		s.invalidator = inv
	}
}

// Observe registers a buffered event channel. Sends never block; an observer
// that falls behind misses events rather than stalling the writer.
func (s *Store) Observe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 32)
	s.observers = append(s.observers, ch)
	return ch
}

func (s *Store) notifyLocked(e Event) {
	for _, ch := range s.observers {
		select {
		case ch <- e:
		default:
		}
	}
}

// ---- feed operations ----

// Subscribe adds a feed by URL. The URL is the subscription identity:
// an existing subscription with the same URL (case-insensitive) conflicts.
func (s *Store) Subscribe(feedURL, title string) (model.Feed, error) {
	trimmed := strings.TrimSpace(feedURL)
	if !isValidURL(trimmed) {
		return model.Feed{}, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, feed := range s.feeds {
		if strings.EqualFold(feed.URL, trimmed) {
			return model.Feed{}, ErrConflict
		}
	}

	feed := &model.Feed{
		ID:    ids.Next(),
		URL:   trimmed,
		Title: strings.TrimSpace(title),
		Auth:  model.AuthNone,
	}
	if feed.Title == "" {
		feed.Title = trimmed
	} else {
		feed.CustomTitle = true
	}

	s.feeds[feed.ID] = feed
	s.notifyLocked(Event{Kind: EventFeedsChanged, FeedID: feed.ID})
	s.scheduleFlushLocked()
	return *feed, nil
}

// Unsubscribe removes a feed and cascades to every item it owns and their
// cached filter results. The caller is responsible for the feed's stored
// credential (see secrets.Store.Delete).
func (s *Store) Unsubscribe(feedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feeds[feedID]; !ok {
		return ErrNotFound
	}
	delete(s.feeds, feedID)

	for id, item := range s.items {
		if item.FeedID != feedID {
			continue
		}
		delete(s.keyIndex, keyForItem(item))
		delete(s.items, id)
		s.invalidator.RemoveItem(id)
	}

	s.notifyLocked(Event{Kind: EventFeedsChanged, FeedID: feedID})
	s.scheduleFlushLocked()
	return nil
}

// RenameFeed sets a user title override. Parser-provided titles no longer
// apply once a custom title exists.
func (s *Store) RenameFeed(feedID int64, title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[feedID]
	if !ok {
		return ErrNotFound
	}
	feed.Title = trimmed
	feed.CustomTitle = true
	s.notifyLocked(Event{Kind: EventFeedsChanged, FeedID: feedID})
	s.scheduleFlushLocked()
	return nil
}

func (s *Store) SetFeedAuth(feedID int64, kind model.AuthKind) error {
	if !kind.Valid() {
		return ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[feedID]
	if !ok {
		return ErrNotFound
	}
	feed.Auth = kind
	s.notifyLocked(Event{Kind: EventFeedsChanged, FeedID: feedID})
	s.scheduleFlushLocked()
	return nil
}

// FeedMeta is what a successful fetch learned about a feed.
type FeedMeta struct {
	Title        string
	IconURL      string
	ETag         string
	LastModified string
	FetchedAt    time.Time
}

// UpdateFeedMeta applies parsed feed metadata. A user title override is
// never clobbered, and validators only move forward (empty values keep the
// stored ones, matching conditional-GET semantics).
func (s *Store) UpdateFeedMeta(feedID int64, meta FeedMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[feedID]
	if !ok {
		return ErrNotFound
	}

	if title := strings.TrimSpace(meta.Title); title != "" && !feed.CustomTitle {
		feed.Title = title
	}
	if icon := strings.TrimSpace(meta.IconURL); icon != "" {
		feed.IconURL = &icon
	}
	if etag := strings.TrimSpace(meta.ETag); etag != "" {
		feed.ETag = &etag
	}
	if lastModified := strings.TrimSpace(meta.LastModified); lastModified != "" {
		feed.LastModified = &lastModified
	}
	fetchedAt := meta.FetchedAt
	feed.LastFetched = &fetchedAt

	s.notifyLocked(Event{Kind: EventFeedsChanged, FeedID: feedID})
	s.scheduleFlushLocked()
	return nil
}

// TouchFeed records a fetch that changed nothing else (HTTP 304).
func (s *Store) TouchFeed(feedID int64, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[feedID]
	if !ok {
		return ErrNotFound
	}
	feed.LastFetched = &fetchedAt
	s.scheduleFlushLocked()
	return nil
}

// ---- item operations ----

// Merge folds one feed's parsed items into the store. First-seen wins: a
// parsed item whose dedup key matches a live item is discarded without
// touching the existing record's read/star state. A key remembered by the
// read-key ledger inserts already read, so an evicted article the user read
// is never re-surfaced as unread. Returns only the newly inserted items that
// are still unread. Idempotent: re-merging the same batch is a no-op.
func (s *Store) Merge(feedID int64, parsed []model.ParsedItem) []model.FeedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feeds[feedID]; !ok {
		// Feed unsubscribed mid-refresh; items must never dangle.
		return nil
	}

	var inserted []model.FeedItem
	changed := false

	for _, record := range parsed {
		key := keyForParsed(feedID, record)
		if _, exists := s.keyIndex[key]; exists {
			continue
		}

		item := &model.FeedItem{
			ID:         ids.Next(),
			FeedID:     feedID,
			Title:      strings.TrimSpace(record.Title),
			Link:       strings.TrimSpace(record.Link),
			SourceID:   record.SourceID,
			Body:       sanitizer.CleanBody(record.Body, maxBodyBytes),
			Published:  record.Published,
			Author:     record.Author,
			Categories: record.Categories,
			Enclosures: record.Enclosures,
		}
		if _, seen := s.ledgerSet[key]; seen {
			item.Read = true
		}

		s.items[item.ID] = item
		s.keyIndex[key] = item.ID
		changed = true

		if !item.Read {
			inserted = append(inserted, *item)
		}
	}

	if changed {
		s.invalidator.InvalidateAll()
		s.notifyLocked(Event{Kind: EventItemsMerged, FeedID: feedID})
		s.scheduleFlushLocked()
	}
	return inserted
}

// MarkRead toggles read state. Marking read records the item's dedup key in
// the ledger and writes through immediately so the flag survives an exit.
func (s *Store) MarkRead(ctx context.Context, itemID int64, read bool) error {
	s.mu.Lock()
	item, ok := s.items[itemID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if item.Read == read {
		s.mu.Unlock()
		return nil
	}
	item.Read = read
	if read {
		s.recordReadKeyLocked(keyForItem(item))
	}
	s.invalidator.InvalidateItem(itemID)
	s.notifyLocked(Event{Kind: EventItemUpdated, FeedID: item.FeedID, ItemID: itemID})
	s.scheduleFlushLocked()
	s.mu.Unlock()

	return s.Flush(ctx)
}

// Star toggles starred state with the same write-through behavior as MarkRead.
func (s *Store) Star(ctx context.Context, itemID int64, starred bool) error {
	s.mu.Lock()
	item, ok := s.items[itemID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if item.Starred == starred {
		s.mu.Unlock()
		return nil
	}
	item.Starred = starred
	s.invalidator.InvalidateItem(itemID)
	s.notifyLocked(Event{Kind: EventItemUpdated, FeedID: item.FeedID, ItemID: itemID})
	s.scheduleFlushLocked()
	s.mu.Unlock()

	return s.Flush(ctx)
}

// ---- queries (snapshots) ----

func (s *Store) Feeds() []model.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		out = append(out, *feed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Feed(feedID int64) (model.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, ok := s.feeds[feedID]
	if !ok {
		return model.Feed{}, ErrNotFound
	}
	return *feed, nil
}

// Items returns item snapshots, newest first. A nil feedID means all feeds.
func (s *Store) Items(feedID *int64) []model.FeedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.FeedItem, 0, len(s.items))
	for _, item := range s.items {
		if feedID != nil && item.FeedID != *feedID {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := publishedOrZero(&out[i]), publishedOrZero(&out[j])
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) Item(itemID int64) (model.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return model.FeedItem{}, ErrNotFound
	}
	return *item, nil
}

// ---- internal helpers ----

func (s *Store) recordReadKeyLocked(key string) {
	if _, ok := s.ledgerSet[key]; ok {
		return
	}
	s.ledger = append(s.ledger, key)
	s.ledgerSet[key] = struct{}{}
	for len(s.ledger) > s.cfg.LedgerSize {
		delete(s.ledgerSet, s.ledger[0])
		s.ledger = s.ledger[1:]
	}
}

func publishedOrZero(item *model.FeedItem) time.Time {
	if item.Published != nil {
		return *item.Published
	}
	return time.Time{}
}

func isValidURL(value string) bool {
	parsed, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func warnPersist(action string, err error) {
	logger.Warn("persistence failed", "module", "store", "action", action, "result", "failed", "error", err)
}
