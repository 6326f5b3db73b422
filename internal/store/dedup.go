package store

import (
	"fmt"
	"strings"
	"time"

	"feedkeep/internal/model"
	"feedkeep/internal/urlutil"
)

// dedupKey derives the logical identity of an item under its feed. Two items
// with equal keys under the same feed are the same article and must never
// coexist. The key is derived, never stored: source id when the publisher
// provides one, otherwise the normalized link, otherwise title+publish epoch.
// The g/l/t prefixes keep the three derivations from colliding.
func dedupKey(feedID int64, sourceID *string, link, title string, published *time.Time) string {
	if sourceID != nil {
		if guid := strings.TrimSpace(*sourceID); guid != "" {
			return fmt.Sprintf("%d|g:%s", feedID, guid)
		}
	}
	if normalized := urlutil.NormalizeLink(link); normalized != "" {
		return fmt.Sprintf("%d|l:%s", feedID, normalized)
	}
	var epoch int64
	if published != nil {
		epoch = published.Unix()
	}
	return fmt.Sprintf("%d|t:%s|%d", feedID, strings.ToLower(strings.TrimSpace(title)), epoch)
}

func keyForParsed(feedID int64, item model.ParsedItem) string {
	return dedupKey(feedID, item.SourceID, item.Link, item.Title, item.Published)
}

func keyForItem(item *model.FeedItem) string {
	return dedupKey(item.FeedID, item.SourceID, item.Link, item.Title, item.Published)
}
