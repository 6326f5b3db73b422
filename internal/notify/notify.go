// Package notify defines the outbound notification boundary. Delivery is
// fire-and-forget: failures are logged and never retried, and a sink must
// never block the caller.
package notify

import "feedkeep/pkg/logger"

type Sink interface {
	Notify(title, body, link string, itemID int64)
}

// LogSink writes notifications to the log. It stands in for an OS-level
// notifier, which is outside this engine's scope.
type LogSink struct{}

func (LogSink) Notify(title, body, link string, itemID int64) {
	logger.Info("notification", "module", "notify", "title", title, "link", link, "item_id", itemID)
}
