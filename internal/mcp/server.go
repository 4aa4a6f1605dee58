package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/amanread/internal/library"
	"github.com/Aman-CERP/amanread/internal/reconcile"
	"github.com/Aman-CERP/amanread/internal/search"
	"github.com/Aman-CERP/amanread/internal/store"
	"github.com/Aman-CERP/amanread/pkg/version"
)

// Library is the part of library.Service the server exposes.
type Library interface {
	Ingest(ctx context.Context, req library.IngestRequest) (*library.IngestResult, error)
	Get(ctx context.Context, id string) (*store.Document, error)
	List(ctx context.Context, opts store.ListOptions) (*store.ListResult, error)
	Update(ctx context.Context, id string, patch store.DocumentPatch) (*store.Document, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	Tags(ctx context.Context) ([]store.TagCount, error)
	Sync(ctx context.Context) (*reconcile.SyncReport, error)
	CleanupOrphans(ctx context.Context) (*reconcile.CleanupReport, error)
	Health(ctx context.Context) (*library.Health, error)
}

var _ Library = (*library.Service)(nil)

// DefaultListLimit is the page size of list_documents.
const DefaultListLimit = 20

// Server is the MCP server for amanread.
type Server struct {
	mcp    *mcp.Server
	lib    Library
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{"search", "Search the reading list. mode \"lexical\" (default) matches exact words in titles, content and summaries; mode \"semantic\" finds documents by meaning and returns similarity scores."},
	{"add_document", "Add a web article, YouTube video, RSS/Atom feed or local file to the reading list. It is summarized and indexed for semantic search in the background."},
	{"get_document", "Get a document with its summary and full content by id."},
	{"list_documents", "List documents, newest first, optionally filtered by tags (any of) and read status."},
	{"update_document", "Change a document's title, tags (replaces the set) or read status."},
	{"delete_document", "Delete a document and its semantic index entry."},
	{"list_tags", "List all tags with their document counts."},
	{"sync_index", "Index documents missing from the semantic index and remove entries of deleted documents."},
	{"status", "Report library health: document and vector counts, semantic search availability, summarizer connectivity and the enrichment queue."},
}

// NewServer creates a new MCP server over lib.
func NewServer(lib Library) (*Server, error) {
	if lib == nil {
		return nil, errors.New("library is required")
	}

	s := &Server{
		lib:    lib,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "amanread", Version: version.Version},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func description(name string) string {
	for _, t := range tools {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

// addTool registers h with the SDK. Results carry both structured content
// and, when text is set, a human readable rendering.
func addTool[In, Out any](s *Server, name string, h func(context.Context, In) (Out, error), text func(Out) string) {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: description(name)},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
			out, err := invoke(ctx, s.logger, name, func(ctx context.Context) (Out, error) { return h(ctx, in) })
			if err != nil {
				var zero Out
				return nil, zero, err
			}
			if text == nil {
				return nil, out, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text(out)}},
			}, out, nil
		})
	s.logger.Debug("registered_tool", slog.String("name", name))
}

func (s *Server) registerTools() {
	addTool(s, "search", s.search, func(out SearchOutput) string { return FormatSearchResults(&out) })
	addTool(s, "add_document", s.addDocument, nil)
	addTool(s, "get_document", s.getDocument, FormatDocument)
	addTool(s, "list_documents", s.listDocuments, nil)
	addTool(s, "update_document", s.updateDocument, nil)
	addTool(s, "delete_document", s.deleteDocument, nil)
	addTool(s, "list_tags", s.listTags, nil)
	addTool(s, "sync_index", s.syncIndex, nil)
	addTool(s, "status", s.status, nil)
	s.logger.Info("mcp_tools_registered", slog.Int("count", len(tools)))
}

// invoke runs fn with request logging and maps its error.
func invoke[Out any](ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) (Out, error)) (Out, error) {
	start := time.Now()
	requestID := generateRequestID()

	out, err := fn(ctx)
	duration := time.Since(start)
	if err != nil {
		mapped := MapError(err)
		logger.Warn("tool_call_failed",
			slog.String("request_id", requestID),
			slog.String("tool", name),
			slog.Duration("duration", duration),
			slog.Int("code", mapped.Code),
			slog.String("error", err.Error()))
		return out, mapped
	}
	logger.Info("tool_call_complete",
		slog.String("request_id", requestID),
		slog.String("tool", name),
		slog.Duration("duration", duration))
	return out, nil
}

// CallTool invokes a tool by name with JSON-style arguments, bypassing the
// protocol. Errors are *MCPError.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return call(ctx, s, name, args, s.search)
	case "add_document":
		return call(ctx, s, name, args, s.addDocument)
	case "get_document":
		return call(ctx, s, name, args, s.getDocument)
	case "list_documents":
		return call(ctx, s, name, args, s.listDocuments)
	case "update_document":
		return call(ctx, s, name, args, s.updateDocument)
	case "delete_document":
		return call(ctx, s, name, args, s.deleteDocument)
	case "list_tags":
		return call(ctx, s, name, args, s.listTags)
	case "sync_index":
		return call(ctx, s, name, args, s.syncIndex)
	case "status":
		return call(ctx, s, name, args, s.status)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func call[In, Out any](ctx context.Context, s *Server, name string, args map[string]any, h func(context.Context, In) (Out, error)) (any, error) {
	var in In
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
	}
	out, err := invoke(ctx, s.logger, name, func(ctx context.Context) (Out, error) { return h(ctx, in) })
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	var mode search.Mode
	if in.Mode != "" {
		m, err := search.ParseMode(in.Mode)
		if err != nil {
			return SearchOutput{}, err
		}
		mode = m
	}

	resp, err := s.lib.Search(ctx, search.Request{
		Query:  in.Query,
		Mode:   mode,
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		return SearchOutput{}, err
	}

	out := SearchOutput{
		Results:  make([]SearchHit, 0, len(resp.Results)),
		Total:    resp.Total,
		Query:    resp.Query,
		Mode:     string(resp.Mode),
		Degraded: resp.Degraded,
	}
	for _, r := range resp.Results {
		tags := r.Document.Tags
		if tags == nil {
			tags = []string{}
		}
		out.Results = append(out.Results, SearchHit{
			ID:         r.Document.ID,
			URL:        r.Document.URL,
			Title:      r.Document.Title,
			Summary:    r.Document.Summary,
			Tags:       tags,
			ReadStatus: r.Document.ReadStatus,
			Score:      r.Score,
			Preview:    r.Preview,
		})
	}
	return out, nil
}

func (s *Server) addDocument(ctx context.Context, in AddDocumentInput) (AddDocumentOutput, error) {
	if strings.TrimSpace(in.URL) == "" {
		return AddDocumentOutput{}, NewInvalidParamsError("url is required")
	}
	req := library.IngestRequest{
		URL:         in.URL,
		ContentType: in.ContentType,
		Title:       in.Title,
		Tags:        in.Tags,
		SourceType:  store.SourceType(in.SourceType),
	}
	if in.Content != "" {
		req.Content = []byte(in.Content)
	}

	res, err := s.lib.Ingest(ctx, req)
	if err != nil {
		return AddDocumentOutput{}, err
	}
	return AddDocumentOutput{
		Document:         toDocumentOutput(res.Document, false),
		Parser:           res.Parser,
		EnrichmentQueued: res.Queued,
	}, nil
}

func (s *Server) getDocument(ctx context.Context, in GetDocumentInput) (DocumentOutput, error) {
	if in.ID == "" {
		return DocumentOutput{}, NewInvalidParamsError("id is required")
	}
	doc, err := s.lib.Get(ctx, in.ID)
	if err != nil {
		return DocumentOutput{}, err
	}
	return toDocumentOutput(doc, true), nil
}

func (s *Server) listDocuments(ctx context.Context, in ListDocumentsInput) (ListDocumentsOutput, error) {
	limit := in.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	res, err := s.lib.List(ctx, store.ListOptions{
		Limit:      limit,
		Offset:     in.Offset,
		Tags:       in.Tags,
		ReadStatus: in.ReadStatus,
	})
	if err != nil {
		return ListDocumentsOutput{}, err
	}

	out := ListDocumentsOutput{
		Documents: make([]DocumentOutput, 0, len(res.Documents)),
		Total:     res.Total,
		Limit:     limit,
		Offset:    in.Offset,
	}
	for _, doc := range res.Documents {
		out.Documents = append(out.Documents, toDocumentOutput(doc, false))
	}
	return out, nil
}

func (s *Server) updateDocument(ctx context.Context, in UpdateDocumentInput) (DocumentOutput, error) {
	if in.ID == "" {
		return DocumentOutput{}, NewInvalidParamsError("id is required")
	}
	patch := store.DocumentPatch{Title: in.Title, ReadStatus: in.ReadStatus}
	if in.Tags != nil {
		tags := in.Tags
		patch.Tags = &tags
	}
	if patch.Empty() {
		return DocumentOutput{}, NewInvalidParamsError("nothing to update: pass title, tags or read_status")
	}

	doc, err := s.lib.Update(ctx, in.ID, patch)
	if err != nil {
		return DocumentOutput{}, err
	}
	return toDocumentOutput(doc, false), nil
}

func (s *Server) deleteDocument(ctx context.Context, in DeleteDocumentInput) (DeleteDocumentOutput, error) {
	if in.ID == "" {
		return DeleteDocumentOutput{}, NewInvalidParamsError("id is required")
	}
	if err := s.lib.Delete(ctx, in.ID); err != nil {
		return DeleteDocumentOutput{}, err
	}
	return DeleteDocumentOutput{ID: in.ID, Deleted: true}, nil
}

func (s *Server) listTags(ctx context.Context, _ ListTagsInput) (ListTagsOutput, error) {
	tags, err := s.lib.Tags(ctx)
	if err != nil {
		return ListTagsOutput{}, err
	}
	if tags == nil {
		tags = []store.TagCount{}
	}
	return ListTagsOutput{Tags: tags}, nil
}

func (s *Server) syncIndex(ctx context.Context, in SyncIndexInput) (SyncIndexOutput, error) {
	if in.SyncOnly && in.CleanupOnly {
		return SyncIndexOutput{}, NewInvalidParamsError("sync_only and cleanup_only are exclusive")
	}

	var out SyncIndexOutput
	if !in.CleanupOnly {
		report, err := s.lib.Sync(ctx)
		if err != nil {
			return SyncIndexOutput{}, err
		}
		out.Sync = report
	}
	if !in.SyncOnly {
		report, err := s.lib.CleanupOrphans(ctx)
		if err != nil {
			return SyncIndexOutput{}, err
		}
		out.Cleanup = report
	}
	return out, nil
}

func (s *Server) status(ctx context.Context, _ StatusInput) (library.Health, error) {
	h, err := s.lib.Health(ctx)
	if err != nil {
		return library.Health{}, err
	}
	return *h, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
