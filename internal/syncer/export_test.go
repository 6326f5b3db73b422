package syncer

// SetRefreshing forces the in-flight flag. Test hook.
func SetRefreshing(o *Orchestrator, refreshing bool) {
	o.mu.Lock()
	o.isRefreshing = refreshing
	o.mu.Unlock()
}
