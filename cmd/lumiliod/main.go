// Command lumiliod is the long-running server process: it connects the
// catalog, starts the Scheduler's worker actors, walks every configured
// asset root once at startup, and then blocks until a shutdown signal.
// Grounded on the teacher's cmd/worker/main.go (config loading, graceful
// shutdown via os/signal + a stop channel) generalized from its ad hoc
// TaskQueue polling loop to the Scheduler/Indexer pair.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"server/internal/actor"
	"server/internal/blobstore"
	"server/internal/catalog/gormcat"
	"server/internal/catalog/model"
	"server/internal/indexer"
	"server/internal/lumiconfig"
	"server/internal/lumilog"
	"server/internal/mediatool"
	"server/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "lumilio.toml", "path to the TOML configuration file")
	dev := flag.Bool("dev", false, "enable development-mode logging")
	dsn := flag.String("dsn", os.Getenv("LUMILIO_DSN"), "catalog Postgres DSN (overrides config-derived default)")
	flag.Parse()

	log, err := lumilog.New(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumiliod: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := lumiconfig.Load(*configPath)
	if err != nil {
		log.Fatal("lumiliod: load config", zap.Error(err))
	}

	catalogDSN := *dsn
	if catalogDSN == "" {
		catalogDSN = gormcat.DSN("localhost", "lumilio", "lumilio", "lumilio", "5432", "disable")
	}
	db, err := gormcat.Connect(lumilog.Component(log, "catalog"), catalogDSN, 20, 5)
	if err != nil {
		log.Fatal("lumiliod: connect catalog", zap.Error(err))
	}
	repo := gormcat.New(db)

	storage, err := blobstore.NewLocalFileStorage(cfg.DataDir.Path)
	if err != nil {
		log.Fatal("lumiliod: init blob storage", zap.Error(err))
	}

	probe := &mediatool.FFProbe{Path: cfg.BinPaths.FFprobePath()}
	exif := &mediatool.Exiftool{Path: cfg.BinPaths.ExiftoolPath()}
	deps := scheduler.Deps{
		Repo:        repo,
		Storage:     storage,
		Thumbnailer: &mediatool.Thumbnailer{FFmpegPath: cfg.BinPaths.FFmpegPath()},
		Converter:   &mediatool.ImageConverter{},
		FFmpeg:      &mediatool.FFmpeg{Path: cfg.BinPaths.FFmpegPath()},
		Shaka:       &mediatool.ShakaPackager{Path: cfg.BinPaths.ShakaPackagerPath()},
		Mpd:         &mediatool.MpdGenerator{Path: cfg.BinPaths.MpdGeneratorPath()},
		Probe:       probe,
	}
	sched := scheduler.New(lumilog.Component(log, "scheduler"), cfg, deps)
	ix := indexer.New(lumilog.Component(log, "indexer"), repo, probe, exif, sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := ensureAssetRoots(ctx, repo, cfg); err != nil {
		log.Fatal("lumiliod: ensure asset roots", zap.Error(err))
	}

	go func() {
		log.Info("lumiliod: starting scheduler")
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("lumiliod: scheduler stopped with error", zap.Error(err))
		}
	}()

	roots, err := repo.AssetRoots(ctx)
	if err != nil {
		log.Fatal("lumiliod: list asset roots", zap.Error(err))
	}
	for _, root := range roots {
		log.Info("lumiliod: walking asset root", zap.String("path", root.Path))
		if err := ix.WalkRoot(ctx, root); err != nil && ctx.Err() == nil {
			log.Error("lumiliod: walk asset root failed", zap.String("path", root.Path), zap.Error(err))
		}
	}

	log.Info("lumiliod: ready", zap.Int("max_active_per_kind", actor.DefaultMaxActive))
	<-ctx.Done()
	log.Info("lumiliod: shutdown signal received")
}

// ensureAssetRoots inserts a catalog AssetRoot row for every configured
// directory that isn't already tracked, so a fresh database matches the
// configuration on first run.
func ensureAssetRoots(ctx context.Context, repo interface {
	AssetRoots(ctx context.Context) ([]model.AssetRoot, error)
	InsertAssetRoot(ctx context.Context, r *model.AssetRoot) error
}, cfg *lumiconfig.Config) error {
	existing, err := repo.AssetRoots(ctx)
	if err != nil {
		return fmt.Errorf("list asset roots: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.Path] = true
	}
	for _, dir := range cfg.AssetDirs {
		if known[dir.Path] {
			continue
		}
		if err := repo.InsertAssetRoot(ctx, &model.AssetRoot{Path: dir.Path, Name: dir.Name}); err != nil {
			return fmt.Errorf("insert asset root %s: %w", dir.Path, err)
		}
	}
	return nil
}
