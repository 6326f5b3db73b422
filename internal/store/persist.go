package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"feedkeep/internal/kvstore"
	"feedkeep/internal/model"
	"feedkeep/pkg/logger"
)

// Each collection persists under its own key as an independent JSON blob.
// One corrupt blob must never take the others down with it.
const (
	keyFeeds  = "feeds"
	keyItems  = "items"
	keyRules  = "filterRules"
	keyLedger = "readKeyLedger"
)

// Load restores persisted state. Every key decodes independently: a missing
// or corrupt blob is logged and skipped, keeping whatever else loaded intact.
// Retention runs once after load, per policy.
func (s *Store) Load(ctx context.Context) error {
	var (
		feeds  []model.Feed
		items  []model.FeedItem
		rules  []model.FilterRule
		ledger []string
	)

	loadKey(ctx, s.kv, keyFeeds, &feeds)
	loadKey(ctx, s.kv, keyItems, &items)
	loadKey(ctx, s.kv, keyRules, &rules)
	loadKey(ctx, s.kv, keyLedger, &ledger)

	s.mu.Lock()
	for i := range feeds {
		feed := feeds[i]
		s.feeds[feed.ID] = &feed
	}
	for i := range items {
		item := items[i]
		if _, ok := s.feeds[item.FeedID]; !ok {
			// An item must never outlive its feed.
			continue
		}
		s.items[item.ID] = &item
		s.keyIndex[keyForItem(&item)] = item.ID
	}
	s.rules = rules
	for _, key := range ledger {
		s.recordReadKeyLocked(key)
	}
	s.mu.Unlock()

	s.ApplyRetention()
	return nil
}

func loadKey[T any](ctx context.Context, kv kvstore.Store, key string, out *T) {
	blob, err := kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("load state failed", "module", "store", "action", "load", "key", key, "result", "failed", "error", err)
		return
	}
	if err := json.Unmarshal(blob, out); err != nil {
		logger.Warn("decode state failed", "module", "store", "action", "load", "key", key, "result", "failed", "error", err)
	}
}

// Flush writes all four collections now. Mutation paths that must survive an
// immediate exit call this directly; everything else rides the debounce.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	feeds := make([]model.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		feeds = append(feeds, *feed)
	}
	items := make([]model.FeedItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, *item)
	}
	rules := make([]model.FilterRule, len(s.rules))
	copy(rules, s.rules)
	ledger := make([]string, len(s.ledger))
	copy(ledger, s.ledger)
	s.mu.Unlock()

	var firstErr error
	for _, blob := range []struct {
		key   string
		value any
	}{
		{keyFeeds, feeds},
		{keyItems, items},
		{keyRules, rules},
		{keyLedger, ledger},
	} {
		encoded, err := json.Marshal(blob.value)
		if err != nil {
			warnPersist("encode "+blob.key, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.kv.Set(ctx, blob.key, encoded); err != nil {
			warnPersist("write "+blob.key, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// scheduleFlushLocked coalesces bursts of mutation into one write after a
// quiet period. With no debounce configured, writes are left to explicit
// Flush calls.
func (s *Store) scheduleFlushLocked() {
	if s.cfg.FlushDebounce <= 0 {
		return
	}
	if s.flushTimer != nil {
		s.flushTimer.Reset(s.cfg.FlushDebounce)
		return
	}
	s.flushTimer = time.AfterFunc(s.cfg.FlushDebounce, func() {
		if err := s.Flush(context.Background()); err != nil {
			warnPersist("debounced flush", err)
		}
	})
}

// Close stops the debounce timer and writes state one last time.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.mu.Unlock()
	return s.Flush(ctx)
}
