package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

// AddFunc adds the file at path to the library.
type AddFunc func(ctx context.Context, path string) error

// ImportReport counts what an import pass did.
type ImportReport struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Importer feeds inbox files to the library. Files already in the library
// are skipped. Deleting a file from the inbox leaves its document in place.
type Importer struct {
	add AddFunc

	mu    sync.Mutex
	total ImportReport
}

// NewImporter creates an importer around add.
func NewImporter(add AddFunc) *Importer {
	return &Importer{add: add}
}

// Scan imports every accepted file already under root, in path order.
func (i *Importer) Scan(ctx context.Context, root string, opts Options) (ImportReport, error) {
	opts = opts.WithDefaults()

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.Accepts(path) {
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				return absErr
			}
			paths = append(paths, abs)
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, amerrors.New(amerrors.ErrCodeFileNotFound, "failed to scan inbox", err).
			WithDetail("path", root)
	}
	sort.Strings(paths)

	var report ImportReport
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		i.importOne(ctx, path, &report)
	}
	return report, nil
}

// Run imports created and modified files from batches until the channel
// closes or ctx is done.
func (i *Importer) Run(ctx context.Context, batches <-chan []FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			var report ImportReport
			for _, event := range batch {
				if event.Operation == OpDelete {
					continue
				}
				i.importOne(ctx, event.Path, &report)
			}
			if report.Added+report.Failed > 0 {
				slog.Info("inbox_batch_imported",
					slog.Int("added", report.Added),
					slog.Int("skipped", report.Skipped),
					slog.Int("failed", report.Failed))
			}
		}
	}
}

func (i *Importer) importOne(ctx context.Context, path string, report *ImportReport) {
	err := i.add(ctx, path)

	i.mu.Lock()
	defer i.mu.Unlock()
	switch {
	case err == nil:
		report.Added++
		i.total.Added++
		slog.Info("inbox_file_added", slog.String("path", path))
	case amerrors.IsConflict(err):
		report.Skipped++
		i.total.Skipped++
		slog.Debug("inbox_file_known", slog.String("path", path))
	default:
		report.Failed++
		i.total.Failed++
		args := append([]any{slog.String("path", path)}, amerrors.LogArgs(err)...)
		slog.Warn("inbox_file_failed", args...)
	}
}

// Totals returns the counts across every Scan and Run so far.
func (i *Importer) Totals() ImportReport {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.total
}
