// Package reconcile brings the similarity index back in line with the
// document store.
//
// The store is authoritative. Sync indexes documents that have no vector
// yet, and CleanupOrphans removes vectors whose document is gone. Both are
// idempotent and tolerate per-document failures.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/similarity"
	"github.com/Aman-CERP/amanread/internal/store"
)

// Documents is the part of the document store reconciliation reads.
type Documents interface {
	AllIDs(ctx context.Context) ([]string, error)
	AllDocuments(ctx context.Context) ([]*store.Document, error)
}

// VectorIndex is the part of the similarity index reconciliation drives.
type VectorIndex interface {
	Available() bool
	Reason() string
	ListIDs() []string
	Count() int
	UpsertRecord(ctx context.Context, r similarity.Record) error
	UpsertBatch(ctx context.Context, records []similarity.Record) error
	Delete(ctx context.Context, id string) error
	Garbage() int
	Compact() (int, error)
	Save() error
}

const (
	// syncBatchSize is the number of documents embedded per call.
	syncBatchSize = 32

	// compactRatio is the share of dead graph nodes, relative to live
	// vectors, at which cleanup rebuilds the graph.
	compactRatio = 0.1
)

// SyncReport summarizes one Sync.
type SyncReport struct {
	TotalDocuments int    `json:"total_documents"`
	Added          int    `json:"added"`
	AlreadySynced  int    `json:"already_synced"`
	Failed         int    `json:"failed"`
	VectorCount    int    `json:"vector_count"`
	Error          string `json:"error,omitempty"`
}

// CleanupReport summarizes one CleanupOrphans.
type CleanupReport struct {
	OrphansFound int    `json:"orphans_found"`
	Removed      int    `json:"removed"`
	Compacted    int    `json:"compacted"` // dead graph nodes dropped
	Error        string `json:"error,omitempty"`
}

// Service reconciles a document store with a similarity index.
type Service struct {
	docs  Documents
	index VectorIndex
}

// NewService creates a reconciliation service.
func NewService(docs Documents, index VectorIndex) *Service {
	return &Service{docs: docs, index: index}
}

// Sync upserts every stored document that has no vector. Failures are
// counted per document and do not stop the run. An unavailable index is
// reported in the result, not as an error.
func (s *Service) Sync(ctx context.Context) (*SyncReport, error) {
	start := time.Now()

	docs, err := s.docs.AllDocuments(ctx)
	if err != nil {
		return nil, err
	}
	report := &SyncReport{TotalDocuments: len(docs)}

	if !s.index.Available() {
		report.Error = s.index.Reason()
		return report, nil
	}

	indexed := make(map[string]struct{}, s.index.Count())
	for _, id := range s.index.ListIDs() {
		indexed[id] = struct{}{}
	}

	var missing []*store.Document
	for _, doc := range docs {
		if _, ok := indexed[doc.ID]; ok {
			report.AlreadySynced++
			continue
		}
		missing = append(missing, doc)
	}

	for i := 0; i < len(missing); i += syncBatchSize {
		if err := ctx.Err(); err != nil {
			report.VectorCount = s.index.Count()
			return report, err
		}
		added, failed := s.syncBatch(ctx, missing[i:min(i+syncBatchSize, len(missing))])
		report.Added += added
		report.Failed += failed
	}

	if report.Added > 0 {
		if err := s.index.Save(); err != nil {
			report.Error = err.Error()
			slog.Warn("sync_save_failed", amerrors.LogArgs(err)...)
		}
	}
	report.VectorCount = s.index.Count()

	slog.Info("sync_complete",
		slog.Int("total", report.TotalDocuments),
		slog.Int("added", report.Added),
		slog.Int("failed", report.Failed),
		slog.Int("vectors", report.VectorCount),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

// syncBatch embeds docs in one call. When the batch fails, each document
// is retried alone so one bad document only fails itself.
func (s *Service) syncBatch(ctx context.Context, docs []*store.Document) (added, failed int) {
	records := make([]similarity.Record, len(docs))
	for i, doc := range docs {
		records[i] = similarity.RecordFor(doc)
	}
	err := s.index.UpsertBatch(ctx, records)
	if err == nil {
		return len(docs), 0
	}
	if len(records) == 1 {
		logSyncFailure(records[0].ID, err)
		return 0, 1
	}

	slog.Debug("sync_batch_failed",
		append([]any{slog.Int("documents", len(records))}, amerrors.LogArgs(err)...)...)
	for _, r := range records {
		if err := s.index.UpsertRecord(ctx, r); err != nil {
			logSyncFailure(r.ID, err)
			failed++
			continue
		}
		added++
	}
	return added, failed
}

func logSyncFailure(id string, err error) {
	slog.Warn("sync_document_failed",
		append([]any{slog.String("document_id", id)}, amerrors.LogArgs(err)...)...)
}

// CleanupOrphans deletes vectors whose document is no longer stored.
// Each orphan is deleted on its own so one failure does not block the rest.
func (s *Service) CleanupOrphans(ctx context.Context) (*CleanupReport, error) {
	report := &CleanupReport{}
	if !s.index.Available() {
		report.Error = s.index.Reason()
		return report, nil
	}

	storeIDs, err := s.docs.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	_, orphans := diff(storeIDs, s.index.ListIDs())
	report.OrphansFound = len(orphans)

	for _, id := range orphans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.index.Delete(ctx, id); err != nil {
			slog.Warn("orphan_delete_failed",
				append([]any{slog.String("document_id", id)}, amerrors.LogArgs(err)...)...)
			continue
		}
		report.Removed++
	}

	if garbage := s.index.Garbage(); shouldCompact(garbage, s.index.Count()) {
		compacted, err := s.index.Compact()
		if err != nil {
			slog.Warn("index_compact_failed", amerrors.LogArgs(err)...)
		} else {
			report.Compacted = compacted
			slog.Info("index_compacted", slog.Int("removed_nodes", compacted))
		}
	}

	if report.Removed > 0 || report.Compacted > 0 {
		if err := s.index.Save(); err != nil {
			report.Error = err.Error()
			slog.Warn("cleanup_save_failed", amerrors.LogArgs(err)...)
		}
	}
	if report.Removed > 0 {
		slog.Info("orphans_removed", slog.Int("count", report.Removed))
	}
	return report, nil
}

// shouldCompact reports whether dead nodes have grown to compactRatio of
// the live vectors.
func shouldCompact(garbage, live int) bool {
	return garbage > 0 && float64(garbage) >= compactRatio*float64(live)
}

// Run is Sync followed by CleanupOrphans.
func (s *Service) Run(ctx context.Context) (*SyncReport, *CleanupReport, error) {
	syncReport, err := s.Sync(ctx)
	if err != nil {
		return syncReport, nil, err
	}
	cleanup, err := s.CleanupOrphans(ctx)
	return syncReport, cleanup, err
}

// RunEvery repeats Run on interval until ctx is done. Errors are logged.
func (s *Service) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("periodic_reconcile_failed", amerrors.LogArgs(err)...)
			}
		}
	}
}
