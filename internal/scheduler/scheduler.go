// Package scheduler routes catalog state into the four per-kind worker
// actors. It never writes to the catalog itself — every mutation happens
// inside an operation's Apply, which the Scheduler's Run loop calls when a
// worker reports a task result.
// Grounded on the teacher's internal/queue/queue_setup.go, which assigns one
// named queue with its own MaxWorkers per workload kind
// (process_asset/process_clip/process_ocr/...); this package generalizes
// that one-queue-per-kind shape to one actor.Actor per operation kind.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"server/internal/actor"
	"server/internal/blobstore"
	"server/internal/catalog"
	"server/internal/lumiconfig"
	"server/internal/mediatool"
	"server/internal/operation"
	"server/internal/proccontrol"
	"server/internal/rules"
)

// NewAsset is the event the Indexer emits once it has inserted a catalog row
// for a freshly discovered (or re-scanned) file.
type NewAsset struct {
	AssetID int64
}

// Deps bundles every adapter an operation's SideEffect needs.
type Deps struct {
	Repo        catalog.Repository
	Storage     blobstore.Storage
	Thumbnailer *mediatool.Thumbnailer
	Converter   *mediatool.ImageConverter
	FFmpeg      *mediatool.FFmpeg
	Shaka       *mediatool.ShakaPackager
	Mpd         *mediatool.MpdGenerator
	Probe       *mediatool.FFProbe
}

// Scheduler owns four bounded-concurrency actors, one per operation kind,
// and routes NewAsset events from the Indexer through the Rule Engine to
// whichever actors have work.
type Scheduler struct {
	log *zap.Logger
	cfg *lumiconfig.Config
	deps Deps

	thumbnails *actor.Actor[operation.CreateThumbnail, thumbOutcome]
	images     *actor.Actor[operation.ConvertImage, imageOutcome]
	videos     *actor.Actor[operation.PackageVideo, videoOutcome]
	albums     *actor.Actor[operation.CreateAlbumThumbnail, albumOutcome]

	newAssets chan NewAsset
}

type thumbOutcome struct {
	assetID int64
	hash    []byte
	result  operation.CreateThumbnailResult
}

type imageOutcome struct {
	op     operation.ConvertImage
	hash   []byte
	result operation.ConvertImageResult
}

type videoOutcome struct {
	op     operation.PackageVideo
	hash   []byte
	result operation.PackageVideoResult
}

type albumOutcome struct {
	op     operation.CreateAlbumThumbnail
	result operation.CreateAlbumThumbnailResult
}

// New constructs a Scheduler with one actor per operation kind, each bounded
// to actor.DefaultMaxActive/DefaultMaxQueue (spec §7).
func New(log *zap.Logger, cfg *lumiconfig.Config, deps Deps) *Scheduler {
	s := &Scheduler{log: log, cfg: cfg, deps: deps, newAssets: make(chan NewAsset, 256)}

	s.thumbnails = actor.New[operation.CreateThumbnail, thumbOutcome](log, actor.DefaultMaxActive, actor.DefaultMaxQueue,
		func(ctx context.Context, op operation.CreateThumbnail, ctl *proccontrol.Handle) (thumbOutcome, error) {
			result, err := op.SideEffect(ctx, deps.Storage, deps.Thumbnailer)
			if err != nil {
				return thumbOutcome{}, fmt.Errorf("scheduler: thumbnail side effect: %w", err)
			}
			return thumbOutcome{assetID: op.AssetID, result: result}, nil
		})

	s.images = actor.New[operation.ConvertImage, imageOutcome](log, actor.DefaultMaxActive, actor.DefaultMaxQueue,
		func(ctx context.Context, op operation.ConvertImage, ctl *proccontrol.Handle) (imageOutcome, error) {
			result := op.SideEffect(ctx, deps.Storage, deps.Converter)
			return imageOutcome{op: op, result: result}, nil
		})

	s.videos = actor.New[operation.PackageVideo, videoOutcome](log, actor.DefaultMaxActive, actor.DefaultMaxQueue,
		func(ctx context.Context, op operation.PackageVideo, ctl *proccontrol.Handle) (videoOutcome, error) {
			result := op.SideEffect(ctx, operation.VideoDeps{
				Storage: deps.Storage, FFmpeg: deps.FFmpeg, Shaka: deps.Shaka, Mpd: deps.Mpd, Probe: deps.Probe,
			})
			return videoOutcome{op: op, result: result}, nil
		})

	s.albums = actor.New[operation.CreateAlbumThumbnail, albumOutcome](log, actor.DefaultMaxActive, actor.DefaultMaxQueue,
		func(ctx context.Context, op operation.CreateAlbumThumbnail, ctl *proccontrol.Handle) (albumOutcome, error) {
			result := op.SideEffect(ctx, deps.Storage, deps.Thumbnailer)
			return albumOutcome{op: op, result: result}, nil
		})

	return s
}

// NotifyNewAsset is how the Indexer hands off a freshly indexed asset.
func (s *Scheduler) NotifyNewAsset(ev NewAsset) {
	select {
	case s.newAssets <- ev:
	default:
		s.log.Warn("scheduler: new-asset queue full, dropping", zap.Int64("asset_id", ev.AssetID))
	}
}

// RequestAlbumThumbnail schedules a pinned album cover derivation
// out-of-band from the Rule Engine (album covers are a user action, not a
// state the rule engine discovers — spec §4.5 Kinds).
func (s *Scheduler) RequestAlbumThumbnail(op operation.CreateAlbumThumbnail) {
	s.albums.Submit(fmt.Sprintf("album-%d-asset-%d", op.AlbumID, op.AssetID), op)
}

// Run is the Scheduler's main loop: starts the four actors, consumes their
// results into catalog Apply calls, routes incoming NewAsset events through
// the Rule Engine, and periodically re-evaluates video-packaging precedence
// globally across the whole catalog (spec.md §4.6: "evaluated globally, not
// per-asset") rather than only on indexing.
func (s *Scheduler) Run(ctx context.Context) error {
	go s.thumbnails.Run(ctx)
	go s.images.Run(ctx)
	go s.videos.Run(ctx)
	go s.albums.Run(ctx)

	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-s.newAssets:
			if err := s.planAndDispatch(ctx, ev.AssetID); err != nil {
				s.log.Error("scheduler: plan asset failed", zap.Int64("asset_id", ev.AssetID), zap.Error(err))
			}

		case <-ticker.C:
			s.globalSweep(ctx)

		case ev := <-s.thumbnails.Events():
			s.handleThumbnailEvent(ctx, ev)

		case ev := <-s.images.Events():
			s.handleImageEvent(ctx, ev)

		case ev := <-s.videos.Events():
			s.handleVideoEvent(ctx, ev)

		case ev := <-s.albums.Events():
			s.handleAlbumEvent(ctx, ev)
		}
	}
}

// globalSweep re-derives the set of assets with outstanding video-packaging
// work by querying the catalog's global precedence views directly (rather
// than relying on the NewAsset stream), then re-runs each candidate through
// the same per-asset Rule Engine planning path planAndDispatch uses for
// freshly indexed assets. This is what makes the three-tier precedence in
// rules.planVideoPackaging actually "global" rather than indexing-triggered
// only: a codec falling out of the acceptable set, or a ladder rung added to
// the configuration, is picked up on the next sweep without re-indexing.
func (s *Scheduler) globalSweep(ctx context.Context) {
	video, audio, err := s.deps.Repo.AcceptableCodecs(ctx)
	if err != nil {
		s.log.Error("scheduler: global sweep: acceptable codecs", zap.Error(err))
		return
	}

	candidates := map[int64]bool{}

	noDash, err := s.deps.Repo.VideosMissingDash(ctx, video, audio)
	if err != nil {
		s.log.Error("scheduler: global sweep: videos missing dash", zap.Error(err))
	} else {
		for _, a := range noDash {
			candidates[a.ID] = true
		}
	}

	unacceptable, err := s.deps.Repo.VideosWithoutAcceptableRepresentation(ctx, video)
	if err != nil {
		s.log.Error("scheduler: global sweep: videos without acceptable representation", zap.Error(err))
	} else {
		for _, a := range unacceptable {
			candidates[a.ID] = true
		}
	}

	rungNames := make([]string, len(s.cfg.Ladder))
	for i, rung := range s.cfg.Ladder {
		rungNames[i] = rung.Name
	}
	missingRungs, err := s.deps.Repo.VideosMissingLadderRungs(ctx, rungNames)
	if err != nil {
		s.log.Error("scheduler: global sweep: videos missing ladder rungs", zap.Error(err))
	} else {
		for assetID := range missingRungs {
			candidates[assetID] = true
		}
	}

	if len(candidates) == 0 {
		return
	}
	s.log.Info("scheduler: global sweep found outstanding video work", zap.Int("candidates", len(candidates)))
	for assetID := range candidates {
		if err := s.planAndDispatch(ctx, assetID); err != nil {
			s.log.Error("scheduler: global sweep: plan asset failed", zap.Int64("asset_id", assetID), zap.Error(err))
		}
	}
}

func (s *Scheduler) planAndDispatch(ctx context.Context, assetID int64) error {
	asset, err := s.deps.Repo.AssetByID(ctx, assetID)
	if err != nil {
		return fmt.Errorf("scheduler: load asset %d: %w", assetID, err)
	}
	plans, err := rules.PlanForAsset(ctx, s.deps.Repo, s.cfg, *asset)
	if err != nil {
		return fmt.Errorf("scheduler: plan asset %d: %w", assetID, err)
	}
	for i, plan := range plans {
		switch {
		case plan.Thumbnail != nil:
			s.thumbnails.Submit(fmt.Sprintf("thumb-%d", assetID), *plan.Thumbnail)
		case plan.ConvertImage != nil:
			s.images.Submit(fmt.Sprintf("conv-%d-%d", assetID, i), *plan.ConvertImage)
		case plan.PackageVideo != nil:
			s.videos.Submit(fmt.Sprintf("pkg-%d", assetID), *plan.PackageVideo)
		}
	}
	return nil
}

func (s *Scheduler) handleThumbnailEvent(ctx context.Context, ev actor.Event[thumbOutcome]) {
	if ev.Kind != actor.EventTaskResult {
		return
	}
	if ev.ResultErr != nil {
		s.log.Error("scheduler: thumbnail task failed", zap.String("id", ev.ResultID), zap.Error(ev.ResultErr))
		return
	}
	op := operation.CreateThumbnail{AssetID: ev.Result.assetID}
	asset, err := s.deps.Repo.AssetByID(ctx, ev.Result.assetID)
	if err != nil {
		s.log.Error("scheduler: load asset for thumbnail apply", zap.Error(err))
		return
	}
	if err := op.Apply(ctx, s.deps.Repo, asset.Hash, ev.Result.result); err != nil {
		s.log.Error("scheduler: apply thumbnail", zap.Error(err))
	}
}

func (s *Scheduler) handleImageEvent(ctx context.Context, ev actor.Event[imageOutcome]) {
	if ev.Kind != actor.EventTaskResult {
		return
	}
	if ev.ResultErr != nil {
		s.log.Error("scheduler: image convert task failed", zap.String("id", ev.ResultID), zap.Error(ev.ResultErr))
		return
	}
	asset, err := s.deps.Repo.AssetByID(ctx, ev.Result.op.AssetID)
	if err != nil {
		s.log.Error("scheduler: load asset for convert-image apply", zap.Error(err))
		return
	}
	if err := ev.Result.op.Apply(ctx, s.deps.Repo, asset.Hash, ev.Result.result); err != nil {
		s.log.Error("scheduler: apply convert image", zap.Error(err))
	}
}

func (s *Scheduler) handleVideoEvent(ctx context.Context, ev actor.Event[videoOutcome]) {
	if ev.Kind != actor.EventTaskResult {
		return
	}
	if ev.ResultErr != nil {
		s.log.Error("scheduler: package video task failed", zap.String("id", ev.ResultID), zap.Error(ev.ResultErr))
		return
	}
	asset, err := s.deps.Repo.AssetByID(ctx, ev.Result.op.AssetID)
	if err != nil {
		s.log.Error("scheduler: load asset for package-video apply", zap.Error(err))
		return
	}
	if err := ev.Result.op.Apply(ctx, s.deps.Repo, asset.Hash, ev.Result.result); err != nil {
		s.log.Error("scheduler: apply package video", zap.Error(err))
	}
}

func (s *Scheduler) handleAlbumEvent(ctx context.Context, ev actor.Event[albumOutcome]) {
	if ev.Kind != actor.EventTaskResult {
		return
	}
	if ev.ResultErr != nil {
		s.log.Error("scheduler: album thumbnail task failed", zap.String("id", ev.ResultID), zap.Error(ev.ResultErr))
		return
	}
	if err := ev.Result.op.Apply(ctx, s.deps.Repo, ev.Result.result); err != nil {
		s.log.Error("scheduler: apply album thumbnail", zap.Error(err))
	}
}

// ReindexAssetRoot names a user request to re-scan one asset root. The
// Scheduler does not consume it; a re-scan runs through
// indexer.Indexer.WalkRoot directly, as cmd/lumilioctl's reindex subcommand
// does.
type ReindexAssetRoot struct {
	AssetRootID int64
}
