package parse

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"feedkeep/internal/model"
	"feedkeep/pkg/sanitizer"
)

// Result is the flat output of decoding one feed payload.
type Result struct {
	Title   string
	IconURL string
	Items   []model.ParsedItem
}

// Parse decodes raw feed bytes. It never fails hard: malformed input yields
// an empty result with ok=false, which callers treat as "no new items, feed
// unchanged".
func Parse(body []byte) (Result, bool) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil || parsed == nil {
		return Result{}, false
	}

	result := Result{Title: strings.TrimSpace(parsed.Title)}
	if parsed.Image != nil {
		result.IconURL = strings.TrimSpace(parsed.Image.URL)
	}

	result.Items = make([]model.ParsedItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		result.Items = append(result.Items, toParsedItem(item))
	}
	return result, true
}

func toParsedItem(item *gofeed.Item) model.ParsedItem {
	out := model.ParsedItem{
		Title:     strings.TrimSpace(sanitizer.StripTags(item.Title)),
		Link:      strings.TrimSpace(item.Link),
		Published: item.PublishedParsed,
	}

	if guid := strings.TrimSpace(item.GUID); guid != "" {
		out.SourceID = &guid
	}

	out.Body = item.Content
	if out.Body == "" {
		out.Body = item.Description
	}

	if item.Author != nil {
		if name := sanitizer.StripTags(item.Author.Name); name != "" {
			out.Author = &name
		}
	}

	for _, category := range item.Categories {
		if trimmed := strings.TrimSpace(category); trimmed != "" {
			out.Categories = append(out.Categories, trimmed)
		}
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil || strings.TrimSpace(enclosure.URL) == "" {
			continue
		}
		length, _ := strconv.ParseInt(enclosure.Length, 10, 64)
		out.Enclosures = append(out.Enclosures, model.Enclosure{
			URL:    strings.TrimSpace(enclosure.URL),
			Type:   enclosure.Type,
			Length: length,
		})
	}

	return out
}
