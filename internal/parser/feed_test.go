package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanread/internal/store"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Systems Weekly</title>
  <link>https://systems.example.com</link>
  <description>Notes on &lt;b&gt;storage&lt;/b&gt; engines</description>
  <item>
    <title>B-trees versus LSM trees</title>
    <link>https://systems.example.com/btree-lsm</link>
    <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
    <description>&lt;p&gt;Read and write amplification compared.&lt;/p&gt;</description>
  </item>
  <item>
    <title>Group commit</title>
    <link>https://systems.example.com/group-commit</link>
    <description>Batching fsyncs.</description>
  </item>
</channel>
</rss>`

func TestFeedParser_RendersItems(t *testing.T) {
	p := NewFeedParser()

	got, err := p.Parse(context.Background(), []byte(rssFeed), Source{URL: "https://systems.example.com/feed"})
	require.NoError(t, err)

	assert.Equal(t, "Systems Weekly", got.Title)
	assert.Equal(t, store.SourceFeed, got.SourceType)
	assert.Equal(t, "Notes on storage engines", got.Excerpt)
	assert.Contains(t, got.Content, "## B-trees versus LSM trees\nPublished: 2025-06-02\nLink: https://systems.example.com/btree-lsm\nRead and write amplification compared.")
	assert.Contains(t, got.Content, "## Group commit")
}

func TestFeedParser_FallsBackOnBrokenXML(t *testing.T) {
	p := NewFeedParser()

	got, err := p.Parse(context.Background(), []byte("<rss><channel><title>Half"), Source{URL: "x.rss"})
	require.NoError(t, err)
	assert.Equal(t, "Half", got.Content)
	assert.Equal(t, store.SourceFeed, got.SourceType)
}
