package filter

// SetRulesHook installs a callback invoked after Evaluate snapshots the rule
// list and before it computes results. Test hook.
func SetRulesHook(e *Engine, fn func()) {
	e.rulesHook = fn
}
