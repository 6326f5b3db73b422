package sanitizer

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var bodyPolicy = bluemonday.UGCPolicy()

// CleanBody sanitizes item body HTML and caps it at maxBytes, cutting on a
// rune boundary so truncation never produces invalid UTF-8.
func CleanBody(input string, maxBytes int) string {
	cleaned := strings.TrimSpace(bodyPolicy.Sanitize(input))
	if maxBytes <= 0 || len(cleaned) <= maxBytes {
		return cleaned
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return cleaned[:cut]
}

// StripTags removes all HTML/XML tags, keeping only text content. Some feeds
// ship markup inside author and title fields.
func StripTags(input string) string {
	input = strings.TrimSpace(input)
	if input == "" || !strings.Contains(input, "<") {
		return input
	}

	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var buf strings.Builder

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if tokenizer.Err() == io.EOF {
				break
			}
			return ""
		}
		if tt == html.TextToken {
			buf.WriteString(tokenizer.Token().Data)
		}
	}

	return strings.TrimSpace(buf.String())
}
