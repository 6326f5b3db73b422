package model

// FilterAction is what a matched rule does to an item.
type FilterAction string

const (
	ActionShowOnly   FilterAction = "show-only"
	ActionHide       FilterAction = "hide"
	ActionHighlight  FilterAction = "highlight"
	ActionAddIcon    FilterAction = "add-icon"
	ActionAddSummary FilterAction = "add-summary"
	ActionAutoStar   FilterAction = "auto-star"
	ActionMarkRead   FilterAction = "mark-read"
	ActionNotify     FilterAction = "notify"
)

func (a FilterAction) Valid() bool {
	switch a {
	case ActionShowOnly, ActionHide, ActionHighlight, ActionAddIcon,
		ActionAddSummary, ActionAutoStar, ActionMarkRead, ActionNotify:
		return true
	}
	return false
}

type ConditionField string

const (
	FieldTitle    ConditionField = "title"
	FieldContent  ConditionField = "content"
	FieldAuthor   ConditionField = "author"
	FieldLink     ConditionField = "link"
	FieldCategory ConditionField = "category"
)

type Comparator string

const (
	CompareContains    Comparator = "contains"
	CompareNotContains Comparator = "not-contains"
	CompareEquals      Comparator = "equals"
	CompareStartsWith  Comparator = "starts-with"
	CompareEndsWith    Comparator = "ends-with"
)

type FilterCondition struct {
	Field      ConditionField `json:"field"`
	Comparator Comparator     `json:"comparator"`
	Value      string         `json:"value"`
}

// CombineLogic joins a rule's conditions: all must hold, or any one.
type CombineLogic string

const (
	LogicAll CombineLogic = "all"
	LogicAny CombineLogic = "any"
)

// FilterRule is one user-authored classification rule. Rules are persisted
// as an ordered list and evaluated in that order.
type FilterRule struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Enabled        bool              `json:"enabled"`
	Action         FilterAction      `json:"action"`
	Conditions     []FilterCondition `json:"conditions"`
	Logic          CombineLogic      `json:"logic"`
	HighlightColor *string           `json:"highlightColor,omitempty"`
	IconGlyph      *string           `json:"iconGlyph,omitempty"`
	// FeedScope limits the rule to these feed IDs; empty means all feeds.
	FeedScope []int64 `json:"feedScope,omitempty"`
}

// AppliesTo reports whether the rule's feed scope covers the given feed.
func (r FilterRule) AppliesTo(feedID int64) bool {
	if len(r.FeedScope) == 0 {
		return true
	}
	for _, id := range r.FeedScope {
		if id == feedID {
			return true
		}
	}
	return false
}

// FilteredItemResult is the derived, never-persisted outcome of running the
// rule set against one item. The pending auto-action flags are consumed once
// by the sync orchestrator for newly merged items.
type FilteredItemResult struct {
	ItemID         int64    `json:"itemId"`
	Visible        bool     `json:"visible"`
	HighlightColor *string  `json:"highlightColor,omitempty"`
	IconGlyph      *string  `json:"iconGlyph,omitempty"`
	ShowSummary    bool     `json:"showSummary,omitempty"`
	MatchedRuleIDs []string `json:"matchedRuleIds,omitempty"`

	AutoStar bool `json:"-"`
	MarkRead bool `json:"-"`
	Notify   bool `json:"-"`
}
