// Package opml imports and exports subscription lists. encoding/xml handles
// escaping of &, quotes, and angle brackets in both attribute directions.
package opml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"feedkeep/internal/model"
)

type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

type Outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Subscription is one importable feed reference.
type Subscription struct {
	Title string
	URL   string
}

// Export emits one rss outline per feed.
func Export(feeds []model.Feed) ([]byte, error) {
	doc := Document{
		Version: "2.0",
		Head: Head{
			Title:       "feedkeep subscriptions",
			DateCreated: time.Now().UTC().Format(time.RFC1123Z),
		},
	}
	for _, feed := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Type:   "rss",
			Text:   feed.Title,
			Title:  feed.Title,
			XMLURL: feed.URL,
		})
	}

	buf := &bytes.Buffer{}
	buf.WriteString(xml.Header)
	encoder := xml.NewEncoder(buf)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	if err := encoder.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Import scans an OPML document for outlines with a non-empty xmlUrl,
// walking nested folders. Deciding which URLs are already subscribed is the
// caller's job.
func Import(r io.Reader) ([]Subscription, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	var subs []Subscription
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, outline := range outlines {
			if url := strings.TrimSpace(outline.XMLURL); url != "" {
				title := strings.TrimSpace(outline.Title)
				if title == "" {
					title = strings.TrimSpace(outline.Text)
				}
				subs = append(subs, Subscription{Title: title, URL: url})
			}
			walk(outline.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return subs, nil
}
