package store

import (
	"sort"
	"time"

	"feedkeep/internal/model"
	"feedkeep/pkg/logger"
)

// ApplyRetention enforces the two-tier eviction policy. It runs at load and
// on explicit trim, never mid-refresh, so an item the user just touched is
// not deleted under them. Returns the number of items evicted.
//
// Tier one, per feed: starred items are exempt; the remaining items are
// sorted by publish date descending and everything beyond the per-feed cap
// is deleted, read or not.
//
// Tier two, global: read+unstarred items older than the retention horizon go
// outright; if the total still exceeds the global cap, unread-or-starred
// items are protected and the newest read candidates fill the remaining
// budget.
func (s *Store) ApplyRetention() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	evicted += s.applyPerFeedCapLocked()
	evicted += s.applyGlobalPolicyLocked()

	if evicted > 0 {
		logger.Info("retention applied", "module", "store", "action", "trim", "result", "ok", "evicted", evicted)
		s.invalidator.InvalidateAll()
		s.notifyLocked(Event{Kind: EventItemsEvicted})
		s.scheduleFlushLocked()
	}
	return evicted
}

func (s *Store) applyPerFeedCapLocked() int {
	if s.cfg.PerFeedCap <= 0 {
		return 0
	}

	byFeed := make(map[int64][]*model.FeedItem)
	for _, item := range s.items {
		if item.Starred {
			continue
		}
		byFeed[item.FeedID] = append(byFeed[item.FeedID], item)
	}

	evicted := 0
	for _, feedItems := range byFeed {
		if len(feedItems) <= s.cfg.PerFeedCap {
			continue
		}
		sortNewestFirst(feedItems)
		for _, item := range feedItems[s.cfg.PerFeedCap:] {
			s.evictLocked(item)
			evicted++
		}
	}
	return evicted
}

func (s *Store) applyGlobalPolicyLocked() int {
	evicted := 0

	if s.cfg.RetentionDays > 0 {
		horizon := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
		for _, item := range s.items {
			if item.Read && !item.Starred && item.Published != nil && item.Published.Before(horizon) {
				s.evictLocked(item)
				evicted++
			}
		}
	}

	if s.cfg.GlobalCap <= 0 || len(s.items) <= s.cfg.GlobalCap {
		return evicted
	}

	protected := 0
	var candidates []*model.FeedItem
	for _, item := range s.items {
		if !item.Read || item.Starred {
			protected++
			continue
		}
		candidates = append(candidates, item)
	}

	budget := s.cfg.GlobalCap - protected
	if budget < 0 {
		budget = 0
	}
	if len(candidates) <= budget {
		return evicted
	}

	sortNewestFirst(candidates)
	for _, item := range candidates[budget:] {
		s.evictLocked(item)
		evicted++
	}
	return evicted
}

// evictLocked deletes one item. Its dedup key stays in the read-key ledger
// (recorded when the item was marked read), so a feed republishing it does
// not resurrect it as unread.
func (s *Store) evictLocked(item *model.FeedItem) {
	key := keyForItem(item)
	delete(s.keyIndex, key)
	delete(s.items, item.ID)
	s.invalidator.RemoveItem(item.ID)
}

func sortNewestFirst(items []*model.FeedItem) {
	sort.Slice(items, func(i, j int) bool {
		pi, pj := publishedOrZero(items[i]), publishedOrZero(items[j])
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return items[i].ID > items[j].ID
	})
}

// SetClock overrides the retention clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
