package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "amanread://"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         uriScheme + "tags",
		Name:        "tags",
		Description: "All tags with their document counts",
		MIMEType:    "application/json",
	}, s.handleTagsResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{id}",
		Name:        "document",
		Description: "A document's summary and content as markdown",
		MIMEType:    "text/markdown",
	}, s.handleDocumentResource)
}

func (s *Server) handleTagsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	out, err := s.listTags(ctx, ListTagsInput{})
	if err != nil {
		return nil, MapError(err)
	}
	data, err := json.MarshalIndent(out.Tags, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleDocumentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	id := documentIDFromURI(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	doc, err := s.getDocument(ctx, GetDocumentInput{ID: id})
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     FormatDocument(doc),
		}},
	}, nil
}

// documentIDFromURI extracts the id from amanread://documents/{id}.
func documentIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, uriScheme+"documents/")
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
