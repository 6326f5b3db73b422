package model

import "time"

type Enclosure struct {
	URL    string `json:"url"`
	Type   string `json:"type,omitempty"`
	Length int64  `json:"length,omitempty"`
}

type FeedItem struct {
	ID         int64       `json:"id"`
	FeedID     int64       `json:"feedId"`
	Title      string      `json:"title"`
	Link       string      `json:"link"`
	SourceID   *string     `json:"sourceId,omitempty"`
	Body       string      `json:"body,omitempty"`
	Published  *time.Time  `json:"published,omitempty"`
	Author     *string     `json:"author,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Read       bool        `json:"read"`
	Starred    bool        `json:"starred"`
	Enclosures []Enclosure `json:"enclosures,omitempty"`
}

// ParsedItem is the flat record a feed parser produces for one entry.
// It carries no identity; the store assigns IDs on insert.
type ParsedItem struct {
	Title      string
	Link       string
	SourceID   *string
	Body       string
	Published  *time.Time
	Author     *string
	Categories []string
	Enclosures []Enclosure
}
