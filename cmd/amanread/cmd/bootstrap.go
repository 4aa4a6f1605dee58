package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/amanread/internal/config"
	"github.com/Aman-CERP/amanread/internal/embed"
	"github.com/Aman-CERP/amanread/internal/enrich"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/internal/fetch"
	"github.com/Aman-CERP/amanread/internal/library"
	"github.com/Aman-CERP/amanread/internal/lifecycle"
	"github.com/Aman-CERP/amanread/internal/logging"
	"github.com/Aman-CERP/amanread/internal/parser"
	"github.com/Aman-CERP/amanread/internal/reconcile"
	"github.com/Aman-CERP/amanread/internal/search"
	"github.com/Aman-CERP/amanread/internal/similarity"
	"github.com/Aman-CERP/amanread/internal/store"
	"github.com/Aman-CERP/amanread/internal/summarize"
)

// shutdownTimeout bounds how long Close waits for in-flight enrichment.
const shutdownTimeout = 10 * time.Second

// openOptions tune openApp for the command being run.
type openOptions struct {
	// serve keeps stdout clean for JSON-RPC: logs go to the file only.
	serve bool
	// rebuild discards the saved semantic index before opening it.
	rebuild bool
}

// app holds every component of an open library. Fields are nil until the
// step that creates them has succeeded, so Close can tear down a partial
// app.
type app struct {
	cfg        *config.Config
	lock       *lifecycle.DataDirLock
	store      *store.SQLiteStore
	embedder   embed.Embedder
	index      *similarity.Index
	fetcher    *fetch.Fetcher
	summarizer summarize.Summarizer
	queue      *enrich.Queue
	reconciler *reconcile.Service
	lib        *library.Service

	logCleanup func()
}

// openApp wires the library in dependency order:
//
//  1. logging
//  2. data directory lock
//  3. document store
//  4. embedder and similarity index (degraded to unavailable on failure)
//  5. fetcher and parser chain
//  6. summarizer, enricher and the enrichment queue (started)
//  7. search router, reconciler and the library facade
func openApp(ctx context.Context, cfg *config.Config, opts openOptions) (*app, error) {
	a := &app{cfg: cfg}
	a.setupLogging(opts)

	slog.Debug("app_opening",
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.Bool("serve", opts.serve))

	a.lock = lifecycle.NewDataDirLock(cfg.Storage.DataDir)
	if err := a.lock.Acquire(); err != nil {
		a.lock = nil
		_ = a.Close()
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = st

	a.openIndex(ctx, opts)

	fetchCfg := fetch.ConfigFrom(cfg.Parsing)
	a.fetcher = fetch.New(fetchCfg)

	var parserOpts parser.Options
	if cfg.Parsing.Transcripts {
		parserOpts.Transcripts = parser.NewTimedTextFetcher(a.fetcher, cfg.Parsing.FetchTimeout)
	}
	parsers := parser.DefaultChain(parserOpts)

	a.summarizer = summarize.New(cfg.Summarizer)
	enricher := enrich.NewEnricher(a.store, a.index, a.summarizer, enrich.EnricherConfig{
		SummaryTimeout: cfg.Summarizer.Timeout,
		EmbedTimeout:   cfg.Embeddings.Timeout,
	})
	a.queue = enrich.NewQueue(enricher, enrich.QueueConfigFrom(cfg.Enrichment))
	a.queue.Start(context.WithoutCancel(ctx))

	router := search.NewRouter(a.store, a.index, search.ConfigFrom(cfg.Search))
	a.reconciler = reconcile.NewService(a.store, a.index)

	a.lib = library.New(library.Deps{
		Store:      a.store,
		Index:      a.index,
		Parsers:    parsers,
		Fetcher:    a.fetcher,
		Queue:      a.queue,
		Summarizer: a.summarizer,
		Router:     router,
		Reconciler: a.reconciler,
	})

	slog.Info("app_opened",
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.Bool("semantic", a.index.Available()),
		slog.String("embedding_model", a.index.ModelName()),
		slog.Any("parsers", parsers.Names()))
	return a, nil
}

// setupLogging installs the file logger. A logger that cannot be opened
// leaves slog's default in place; logging never blocks a command.
func (a *app) setupLogging(opts openOptions) {
	logCfg := logging.DefaultConfig(a.cfg.Storage.DataDir)
	logCfg.Level = a.cfg.Server.LogLevel

	var (
		cleanup func()
		err     error
	)
	if opts.serve {
		cleanup, err = logging.SetupServeMode(logCfg)
	} else {
		cleanup, err = logging.SetupDefault(logCfg)
	}
	if err == nil {
		a.logCleanup = cleanup
	}
}

// openIndex builds the embedder and the similarity index. Either failing
// leaves semantic search unavailable while lexical search keeps working.
//
// A saved index from another embedding model is kept and reported, unless
// a rebuild was asked for or it was built by the static embedder, whose
// vectors are cheap to recompute.
func (a *app) openIndex(ctx context.Context, opts openOptions) {
	dir := a.cfg.VectorDir()
	if opts.rebuild {
		if err := similarity.Remove(dir); err != nil {
			a.indexUnavailable(err)
			return
		}
		slog.Info("similarity_index_removed", slog.String("path", dir))
	}

	embedder, err := embed.NewEmbedder(ctx, a.cfg.Embeddings)
	if err != nil {
		a.indexUnavailable(err)
		return
	}
	a.embedder = embedder

	index, err := similarity.Open(dir, embedder)
	if errors.Is(err, similarity.ErrModelChanged) && embed.IsStaticModel(similarity.SavedModel(dir)) {
		slog.Info("similarity_index_replaced",
			slog.String("saved_model", similarity.SavedModel(dir)),
			slog.String("model", embedder.ModelName()))
		if err = similarity.Remove(dir); err == nil {
			index, err = similarity.Open(dir, embedder)
		}
	}
	if err != nil {
		a.indexUnavailable(err)
		return
	}
	a.index = index
}

func (a *app) indexUnavailable(err error) {
	slog.Warn("semantic_search_unavailable", amerrors.LogArgs(err)...)
	a.index = similarity.Unavailable(err.Error())
}

// drain waits for queued enrichment to finish, bounded by timeout.
func (a *app) drain(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.queue.Drain(ctx); err != nil {
		return amerrors.New(amerrors.ErrCodeNetworkTimeout, "enrichment did not finish in time", err).
			WithSuggestion("Run 'amanread sync' later to index what was left")
	}
	return nil
}

// Close stops the workers and releases everything openApp acquired, in
// reverse order. Safe on a partially opened app.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop enrichment: %w", err))
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close similarity index: %w", err))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close embedder: %w", err))
		}
	}
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("app_close_failed", slog.String("error", err.Error()))
	} else {
		slog.Debug("app_closed")
	}
	if a.logCleanup != nil {
		a.logCleanup()
		a.logCleanup = nil
	}
	return err
}

// withApp loads the configuration, opens the library, runs fn and closes
// the library again.
func withApp(ctx context.Context, fn func(a *app) error) error {
	return withAppOptions(ctx, openOptions{}, fn)
}

func withAppOptions(ctx context.Context, opts openOptions, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	runErr := fn(a)
	closeErr := a.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}
