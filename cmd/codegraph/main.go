package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"codegraph/internal/annotations"
	"codegraph/internal/core/config"
	"codegraph/internal/data/history"
	"codegraph/internal/engine/analysis"
	"codegraph/internal/engine/graph"
	"codegraph/internal/indexing"
	"codegraph/internal/query"
	"codegraph/internal/shared/observability"
)

var (
	configPath  = flag.String("config", "./codegraph.toml", "Path to config file")
	once        = flag.Bool("once", false, "Index once, print a summary, and exit")
	digest      = flag.Bool("digest", false, "Print the codebase digest and exit")
	scope       = flag.String("scope", "", "Path prefix restricting -digest")
	impact      = flag.String("impact", "", "Show the blast radius of changing a file and exit")
	depth       = flag.Int("depth", 0, "Impact traversal depth (default 2, max 4)")
	chain       = flag.Bool("path", false, "Trace dependency chains: codegraph -path <from> <to>")
	moduleArg   = flag.String("module", "", "Show one file's imports, importers, and exports, then exit")
	cyclesMode  = flag.Bool("cycles", false, "List dependency cycles and exit")
	trend       = flag.Bool("trend", false, "Print recent index snapshots and exit")
	issuesMode  = flag.Bool("issues", false, "List structural issues and exit")
	metricsAddr = flag.String("metrics-addr", "", "Override the configured metrics listen address")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("codegraph v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *chain {
		if flag.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "path mode requires two arguments: codegraph -path <from> <to>")
			os.Exit(1)
		}
	} else if flag.NArg() > 0 {
		cfg.Root = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observe.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	store := graph.NewStore()
	ann := annotations.NewManager(underRoot(cfg.Root, cfg.Annotations.Path))

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(underRoot(cfg.Root, cfg.History.Path))
		if err != nil {
			slog.Warn("history disabled", "error", err)
		} else {
			defer hist.Close()
		}
	}

	if *trend {
		if hist == nil {
			fmt.Fprintln(os.Stderr, "trend mode requires [history] enabled = true")
			os.Exit(1)
		}
		snapshots, err := hist.LoadSnapshots(time.Now().AddDate(0, 0, -30))
		if err != nil {
			slog.Error("failed to load history", "error", err)
			os.Exit(1)
		}
		fmt.Print(formatTrend(snapshots))
		os.Exit(0)
	}

	builder, err := indexing.NewBuilder(cfg, store, ann, hist)
	if err != nil {
		slog.Error("failed to initialize indexer", "error", err)
		os.Exit(1)
	}

	stats, err := builder.RebuildAll(ctx)
	if err != nil {
		slog.Error("initial index failed", "error", err)
		os.Exit(1)
	}

	svc, err := query.New(store, query.Options{
		CacheCapacity: cfg.Cache.Capacity,
		CacheTTL:      cfg.Cache.TTL,
		LayerRules:    layerRules(cfg),
	})
	if err != nil {
		slog.Error("failed to initialize query service", "error", err)
		os.Exit(1)
	}

	if done := runQueryMode(ctx, svc); done {
		os.Exit(0)
	}

	fmt.Print(formatSummary(store, stats))
	if *once {
		os.Exit(0)
	}

	addr := cfg.Observe.MetricsAddr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		server := observability.NewServer(addr, func(context.Context) observability.HealthStatus {
			meta := store.MetaInfo()
			return observability.HealthStatus{
				Status:    observability.StatusOK,
				Files:     meta.FileCount,
				Edges:     store.EdgeCount(),
				IndexedAt: meta.LastIndexedAt,
			}
		})
		go func() {
			if err := server.Start(ctx); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer server.Stop(context.Background())
	}

	watcher, err := indexing.NewWatcher(builder.Discovery(), cfg.Watch.Debounce, func(paths []string) {
		if err := builder.ApplyChanges(context.Background(), paths); err != nil {
			slog.Error("incremental update failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("failed to initialize watcher", "error", err)
		os.Exit(1)
	}
	if err := watcher.Watch(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	slog.Info("watching for changes", "root", cfg.Root)
	<-ctx.Done()
	slog.Info("shutting down")
}

// runQueryMode dispatches the one-shot query flags. It returns true when one
// of them ran and the process should exit.
func runQueryMode(ctx context.Context, svc *query.Service) bool {
	switch {
	case *digest:
		fmt.Print(formatDigest(svc.Digest(ctx, *scope)))
	case *impact != "":
		fmt.Print(formatImpact(svc.Impact(ctx, *impact, *depth)))
	case *chain:
		res := svc.Path(ctx, flag.Arg(0), flag.Arg(1), query.PathOptions{})
		fmt.Print(formatPath(res))
	case *moduleArg != "":
		fmt.Print(formatModule(svc.Module(ctx, *moduleArg, true)))
	case *cyclesMode:
		fmt.Print(formatCycles(svc.Cycles(ctx, analysis.CycleOptions{})))
	case *issuesMode:
		fmt.Print(formatIssues(svc.Issues(ctx, query.IssueFilter{})))
	default:
		return false
	}
	return true
}

// underRoot resolves a config path against the project root unless it is
// already absolute.
func underRoot(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func layerRules(cfg *config.Config) []analysis.LayerRule {
	rules := make([]analysis.LayerRule, 0, len(cfg.Layers.Rules))
	for _, rule := range cfg.Layers.Rules {
		rules = append(rules, analysis.LayerRule{
			Name: rule.Name, From: rule.From, CannotImport: rule.CannotImport,
		})
	}
	return rules
}
