// Package filter evaluates the user's ordered rule list against items,
// producing visibility and annotation results with a per-item cache. The
// engine implements store.Invalidator, so every store mutation funnels
// through one invalidation policy.
package filter

import (
	"context"
	"strings"
	"sync"

	"feedkeep/internal/model"
	"feedkeep/internal/notify"
	"feedkeep/internal/store"
	"feedkeep/pkg/logger"
)

type Engine struct {
	store *store.Store
	sink  notify.Sink

	mu sync.Mutex
	// gen moves on every full invalidation; a result computed against a
	// rule set that was invalidated mid-evaluation must not enter the cache.
	gen   uint64
	cache map[int64]model.FilteredItemResult
	// acted guards at-most-once auto-action delivery per item.
	acted map[int64]struct{}

	// rulesHook runs after Evaluate snapshots the rule list. Test hook.
	rulesHook func()
}

func New(st *store.Store, sink notify.Sink) *Engine {
	return &Engine{
		store: st,
		sink:  sink,
		cache: make(map[int64]model.FilteredItemResult),
		acted: make(map[int64]struct{}),
	}
}

// Evaluate runs the rule set over the given items. Pure: no item or rule
// state is mutated; auto-actions are only recorded as pending flags.
// Results are cached per item ID until the store invalidates them.
func (e *Engine) Evaluate(items []model.FeedItem) []model.FilteredItemResult {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()

	rules := e.store.Rules()
	if e.rulesHook != nil {
		e.rulesHook()
	}

	showRuleExists := false
	for _, rule := range rules {
		if rule.Enabled && rule.Action == model.ActionShowOnly {
			showRuleExists = true
			break
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.FilteredItemResult, 0, len(items))
	for i := range items {
		item := &items[i]
		if cached, ok := e.cache[item.ID]; ok {
			out = append(out, cached)
			continue
		}
		result := evaluateItem(rules, showRuleExists, item)
		if e.gen == gen {
			e.cache[item.ID] = result
		}
		out = append(out, result)
	}
	return out
}

// ApplyAutoActions performs the pending side effects for a batch of newly
// merged items: star and mark-read mutate through the store, notify fires
// the external sink. Each item triggers each action at most once.
func (e *Engine) ApplyAutoActions(ctx context.Context, newItems []model.FeedItem) {
	if len(newItems) == 0 {
		return
	}

	results := e.Evaluate(newItems)

	for i := range newItems {
		item := &newItems[i]

		e.mu.Lock()
		if _, done := e.acted[item.ID]; done {
			e.mu.Unlock()
			continue
		}
		e.acted[item.ID] = struct{}{}
		e.mu.Unlock()

		result := results[i]
		if result.AutoStar {
			if err := e.store.Star(ctx, item.ID, true); err != nil {
				logger.Warn("auto-star failed", "module", "filter", "action", "auto-star", "result", "failed", "item_id", item.ID, "error", err)
			}
		}
		if result.MarkRead {
			if err := e.store.MarkRead(ctx, item.ID, true); err != nil {
				logger.Warn("auto mark-read failed", "module", "filter", "action", "mark-read", "result", "failed", "item_id", item.ID, "error", err)
			}
		}
		if result.Notify && e.sink != nil {
			e.sink.Notify(item.Title, item.Body, item.Link, item.ID)
		}
	}
}

// ---- store.Invalidator ----

func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	e.gen++
	e.cache = make(map[int64]model.FilteredItemResult)
	e.mu.Unlock()
}

func (e *Engine) InvalidateItem(itemID int64) {
	e.mu.Lock()
	delete(e.cache, itemID)
	e.mu.Unlock()
}

func (e *Engine) RemoveItem(itemID int64) {
	e.mu.Lock()
	delete(e.cache, itemID)
	delete(e.acted, itemID)
	e.mu.Unlock()
}

// ---- evaluation ----

func evaluateItem(rules []model.FilterRule, showRuleExists bool, item *model.FeedItem) model.FilteredItemResult {
	result := model.FilteredItemResult{ItemID: item.ID, Visible: true}
	hidden := false
	matchedShow := false

	for _, rule := range rules {
		if !rule.Enabled || !rule.AppliesTo(item.FeedID) {
			continue
		}
		if !matchRule(rule, item) {
			continue
		}
		result.MatchedRuleIDs = append(result.MatchedRuleIDs, rule.ID)

		switch rule.Action {
		case model.ActionHide:
			hidden = true
		case model.ActionHighlight:
			// Last matching highlight rule wins; no blending.
			result.HighlightColor = rule.HighlightColor
		case model.ActionAddIcon:
			result.IconGlyph = rule.IconGlyph
		case model.ActionAddSummary:
			result.ShowSummary = true
		case model.ActionShowOnly:
			matchedShow = true
		case model.ActionAutoStar:
			result.AutoStar = true
		case model.ActionMarkRead:
			result.MarkRead = true
		case model.ActionNotify:
			result.Notify = true
		}
	}

	// Show-only rules form a global AND: once any enabled show rule exists,
	// an item is visible only if it matched at least one of them.
	result.Visible = !hidden && (!showRuleExists || matchedShow)
	return result
}

// matchRule evaluates the rule's condition list with its combine logic.
// A rule with no conditions never matches.
func matchRule(rule model.FilterRule, item *model.FeedItem) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	for _, condition := range rule.Conditions {
		matched := matchCondition(condition, item)
		if rule.Logic == model.LogicAny {
			if matched {
				return true
			}
		} else if !matched {
			return false
		}
	}
	return rule.Logic != model.LogicAny
}

func matchCondition(condition model.FilterCondition, item *model.FeedItem) bool {
	value := strings.ToLower(condition.Value)

	if condition.Field == model.FieldCategory {
		anyMatch := false
		for _, category := range item.Categories {
			if compare(strings.ToLower(category), positive(condition.Comparator), value) {
				anyMatch = true
				break
			}
		}
		if condition.Comparator == model.CompareNotContains {
			return !anyMatch
		}
		return anyMatch
	}

	var field string
	switch condition.Field {
	case model.FieldTitle:
		field = item.Title
	case model.FieldContent:
		field = item.Body
	case model.FieldAuthor:
		if item.Author != nil {
			field = *item.Author
		}
	case model.FieldLink:
		field = item.Link
	default:
		return false
	}

	field = strings.ToLower(field)
	if condition.Comparator == model.CompareNotContains {
		return !strings.Contains(field, value)
	}
	return compare(field, condition.Comparator, value)
}

// positive maps not-contains to its underlying positive check; the caller
// applies the negation across the tag set.
func positive(comparator model.Comparator) model.Comparator {
	if comparator == model.CompareNotContains {
		return model.CompareContains
	}
	return comparator
}

func compare(field string, comparator model.Comparator, value string) bool {
	switch comparator {
	case model.CompareContains:
		return strings.Contains(field, value)
	case model.CompareEquals:
		return field == value
	case model.CompareStartsWith:
		return strings.HasPrefix(field, value)
	case model.CompareEndsWith:
		return strings.HasSuffix(field, value)
	default:
		return false
	}
}
