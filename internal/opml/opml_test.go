package opml_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"feedkeep/internal/model"
	"feedkeep/internal/opml"
)

func TestExportImport_RoundTripWithAmpersand(t *testing.T) {
	feeds := []model.Feed{
		{ID: 1, Title: `News & "Analysis"`, URL: "https://example.com/feed?a=1&b=2"},
		{ID: 2, Title: "<Weird> Title", URL: "https://EXAMPLE.com/other"},
	}

	payload, err := opml.Export(feeds)
	require.NoError(t, err)
	require.Contains(t, string(payload), "&amp;")

	subs, err := opml.Import(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "https://example.com/feed?a=1&b=2", subs[0].URL)
	require.Equal(t, `News & "Analysis"`, subs[0].Title)
	require.Equal(t, "<Weird> Title", subs[1].Title)

	// Round-trip preserves the subscription set by URL, case-insensitively.
	require.True(t, strings.EqualFold(feeds[1].URL, subs[1].URL))
}

func TestImport_WalksNestedOutlinesAndSkipsFolders(t *testing.T) {
	doc := `<?xml version="1.0"?>
<opml version="2.0">
  <body>
    <outline text="Folder">
      <outline type="rss" text="Inner" xmlUrl="https://example.com/inner"/>
      <outline text="Empty folder"/>
    </outline>
    <outline type="rss" title="Top" xmlUrl="https://example.com/top"/>
    <outline text="No url at all"/>
  </body>
</opml>`

	subs, err := opml.Import(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "https://example.com/inner", subs[0].URL)
	require.Equal(t, "Inner", subs[0].Title)
	require.Equal(t, "https://example.com/top", subs[1].URL)
}

func TestImport_RejectsGarbage(t *testing.T) {
	_, err := opml.Import(strings.NewReader("not xml"))
	require.Error(t, err)
}
