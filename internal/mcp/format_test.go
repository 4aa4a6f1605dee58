package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSearchResults(t *testing.T) {
	score := float32(0.9)
	out := &SearchOutput{
		Query: "channels",
		Mode:  "semantic",
		Total: 1,
		Results: []SearchHit{{
			ID:      "doc-1",
			URL:     "https://example.com/go",
			Title:   "Go Concurrency Patterns",
			Summary: "How to structure concurrent Go.",
			Tags:    []string{"go", "concurrency"},
			Score:   &score,
			Preview: "Channels and goroutines.",
		}},
	}

	md := FormatSearchResults(out)

	assert.Contains(t, md, "## Search Results for \"channels\" (semantic)")
	assert.Contains(t, md, "Found 1 result\n")
	assert.Contains(t, md, "### 1. Go Concurrency Patterns")
	assert.Contains(t, md, "- **score:** 0.90")
	assert.Contains(t, md, "- **tags:** go, concurrency")
	assert.Contains(t, md, "> Channels and goroutines.")
}

func TestFormatSearchResults_Empty(t *testing.T) {
	assert.Equal(t, `No results found for "zzz"`, FormatSearchResults(&SearchOutput{Query: "zzz"}))

	md := FormatSearchResults(&SearchOutput{Query: "zzz", Degraded: true})
	assert.Contains(t, md, "Semantic search is unavailable")
}

func TestFormatSearchResults_LexicalHasNoScore(t *testing.T) {
	md := FormatSearchResults(&SearchOutput{
		Query:   "go",
		Mode:    "lexical",
		Total:   2,
		Results: []SearchHit{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
	})

	assert.Contains(t, md, "Found 2 results")
	assert.NotContains(t, md, "score")
}

func TestFormatDocument(t *testing.T) {
	doc := toDocumentOutput(sampleDoc(), true)

	md := FormatDocument(doc)

	assert.Contains(t, md, "# Go Concurrency Patterns\n")
	assert.Contains(t, md, "- **author:** Gopher")
	assert.Contains(t, md, "- **published:** 2025-12-24T00:00:00Z")
	assert.Contains(t, md, "- **status:** unread")
	assert.Contains(t, md, "## Summary\n\nHow to structure concurrent Go.")
	assert.Contains(t, md, "## Content\n\nChannels and goroutines.")
}
