package store

import (
	"strings"

	"github.com/google/uuid"

	"feedkeep/internal/model"
)

// Rules returns the ordered rule list. Order is evaluation order.
func (s *Store) Rules() []model.FilterRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.FilterRule, len(s.rules))
	copy(out, s.rules)
	return out
}

func validateRule(rule model.FilterRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return ErrInvalid
	}
	if !rule.Action.Valid() {
		return ErrInvalid
	}
	if rule.Logic != model.LogicAll && rule.Logic != model.LogicAny {
		return ErrInvalid
	}
	return nil
}

func (s *Store) AddRule(rule model.FilterRule) (model.FilterRule, error) {
	if rule.Logic == "" {
		rule.Logic = model.LogicAll
	}
	if err := validateRule(rule); err != nil {
		return model.FilterRule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.ID == rule.ID {
			return model.FilterRule{}, ErrConflict
		}
	}
	s.rules = append(s.rules, rule)
	s.rulesChangedLocked()
	return rule, nil
}

func (s *Store) UpdateRule(rule model.FilterRule) (model.FilterRule, error) {
	if rule.Logic == "" {
		rule.Logic = model.LogicAll
	}
	if err := validateRule(rule); err != nil {
		return model.FilterRule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.rules {
		if existing.ID == rule.ID {
			s.rules[i] = rule
			s.rulesChangedLocked()
			return rule, nil
		}
	}
	return model.FilterRule{}, ErrNotFound
}

func (s *Store) DeleteRule(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.rules {
		if existing.ID == ruleID {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			s.rulesChangedLocked()
			return nil
		}
	}
	return ErrNotFound
}

func (s *Store) SetRuleEnabled(ruleID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rules {
		if s.rules[i].ID == ruleID {
			if s.rules[i].Enabled != enabled {
				s.rules[i].Enabled = enabled
				s.rulesChangedLocked()
			}
			return nil
		}
	}
	return ErrNotFound
}

// ReorderRules replaces the evaluation order. The ID list must be a
// permutation of the stored rules.
func (s *Store) ReorderRules(ruleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ruleIDs) != len(s.rules) {
		return ErrInvalid
	}
	byID := make(map[string]model.FilterRule, len(s.rules))
	for _, rule := range s.rules {
		byID[rule.ID] = rule
	}

	reordered := make([]model.FilterRule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		rule, ok := byID[id]
		if !ok {
			return ErrInvalid
		}
		delete(byID, id)
		reordered = append(reordered, rule)
	}

	s.rules = reordered
	s.rulesChangedLocked()
	return nil
}

func (s *Store) rulesChangedLocked() {
	s.invalidator.InvalidateAll()
	s.notifyLocked(Event{Kind: EventRulesChanged})
	s.scheduleFlushLocked()
}
