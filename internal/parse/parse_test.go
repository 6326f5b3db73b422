package parse_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"feedkeep/internal/parse"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <image><url>https://example.com/icon.png</url><title>Example</title></image>
    <item>
      <title>First &amp; Second</title>
      <link>https://example.com/1</link>
      <guid>guid-1</guid>
      <description>Body text</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
      <category>Tech</category>
      <category>News</category>
      <enclosure url="https://example.com/audio.mp3" type="audio/mpeg" length="12345"/>
    </item>
    <item>
      <title>No guid</title>
      <link>https://example.com/2</link>
    </item>
  </channel>
</rss>`

func TestParse_MapsFields(t *testing.T) {
	result, ok := parse.Parse([]byte(sampleRSS))
	require.True(t, ok)
	require.Equal(t, "Example Feed", result.Title)
	require.Equal(t, "https://example.com/icon.png", result.IconURL)
	require.Len(t, result.Items, 2)

	first := result.Items[0]
	require.Equal(t, "First & Second", first.Title)
	require.Equal(t, "https://example.com/1", first.Link)
	require.NotNil(t, first.SourceID)
	require.Equal(t, "guid-1", *first.SourceID)
	require.Equal(t, "Body text", first.Body)
	require.NotNil(t, first.Published)
	require.Equal(t, []string{"Tech", "News"}, first.Categories)
	require.Len(t, first.Enclosures, 1)
	require.Equal(t, "https://example.com/audio.mp3", first.Enclosures[0].URL)
	require.Equal(t, int64(12345), first.Enclosures[0].Length)

	second := result.Items[1]
	require.Nil(t, second.SourceID)
	require.Nil(t, second.Published)
}

func TestParse_MalformedInputNeverFailsHard(t *testing.T) {
	for _, input := range []string{"", "not xml at all", "<html><body>a page</body></html>"} {
		result, ok := parse.Parse([]byte(input))
		require.False(t, ok)
		require.Empty(t, result.Items)
	}
}
