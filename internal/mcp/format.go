package mcp

import (
	"fmt"
	"strings"
)

// FormatSearchResults renders search results as markdown for the text
// content of the search tool.
func FormatSearchResults(out *SearchOutput) string {
	var sb strings.Builder

	if out.Degraded {
		sb.WriteString("> Semantic search is unavailable right now. Try mode \"lexical\".\n\n")
	}
	if len(out.Results) == 0 {
		sb.WriteString(fmt.Sprintf("No results found for \"%s\"", out.Query))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" (%s)\n\n", out.Query, out.Mode))
	sb.WriteString(fmt.Sprintf("Found %d result", out.Total))
	if out.Total != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, hit := range out.Results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, hit.Title))
		sb.WriteString(fmt.Sprintf("- **id:** `%s`\n", hit.ID))
		sb.WriteString(fmt.Sprintf("- **url:** %s\n", hit.URL))
		if hit.Score != nil {
			sb.WriteString(fmt.Sprintf("- **score:** %.2f\n", *hit.Score))
		}
		if len(hit.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("- **tags:** %s\n", strings.Join(hit.Tags, ", ")))
		}
		sb.WriteString("\n")
		if hit.Summary != "" {
			sb.WriteString(hit.Summary)
			sb.WriteString("\n\n")
		}
		if hit.Preview != "" {
			sb.WriteString(fmt.Sprintf("> %s\n\n", hit.Preview))
		}
	}
	return sb.String()
}

// FormatDocument renders a document as markdown.
func FormatDocument(doc DocumentOutput) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", doc.Title))
	sb.WriteString(fmt.Sprintf("- **url:** %s\n", doc.URL))
	sb.WriteString(fmt.Sprintf("- **type:** %s\n", doc.SourceType))
	if doc.Author != "" {
		sb.WriteString(fmt.Sprintf("- **author:** %s\n", doc.Author))
	}
	if doc.PublishedDate != "" {
		sb.WriteString(fmt.Sprintf("- **published:** %s\n", doc.PublishedDate))
	}
	if len(doc.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("- **tags:** %s\n", strings.Join(doc.Tags, ", ")))
	}
	read := "unread"
	if doc.ReadStatus {
		read = "read"
	}
	sb.WriteString(fmt.Sprintf("- **status:** %s\n\n", read))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(doc.Summary)
	sb.WriteString("\n")

	if doc.Content != "" {
		sb.WriteString("\n## Content\n\n")
		sb.WriteString(doc.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
