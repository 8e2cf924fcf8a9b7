package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/notify"
	"github.com/desertthunder/ytpub/internal/shared"
)

// Batch pass names, also used as metric labels.
const (
	PassNew       = "new"
	PassFailed    = "failed"
	PassRemoved   = "removed"
	PassStatus    = "status"
	PassPlaylists = "playlists"
	PassMetadata  = "metadata"
)

// Result describes an asset a pass handled successfully.
type Result struct {
	AssetID string
	Title   string
	VideoID string
	Link    string
	Status  models.Status
	Pass    string
	Touched []string // playlist ids, playlists pass only
}

// Failure describes an asset a pass could not handle.
type Failure struct {
	AssetID string
	Title   string
	Pass    string
	Err     error
}

// BatchResult aggregates the per-asset outcomes of a batch.
type BatchResult struct {
	Succeeded []Result
	Failed    []Failure
}

func (r *BatchResult) handled(asset *models.Asset) bool {
	return slices.ContainsFunc(r.Succeeded, func(s Result) bool { return s.AssetID == asset.ID() }) ||
		slices.ContainsFunc(r.Failed, func(f Failure) bool { return f.AssetID == asset.ID() })
}

// Total returns the number of assets handled.
func (r *BatchResult) Total() int { return len(r.Succeeded) + len(r.Failed) }

// Err joins every per-asset failure, nil when all succeeded.
func (r *BatchResult) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("asset %s: %w", f.AssetID, f.Err))
	}
	return errors.Join(errs...)
}

// Batch selects candidate assets and runs the engine on them one at a time.
//
// A failing asset is recorded and the batch moves on to the next one.
type Batch struct {
	engine *Engine
}

// NewBatch creates a batch driver on engine.
func NewBatch(engine *Engine) *Batch {
	return &Batch{engine: engine}
}

// Upload publishes new assets, then retries assets whose record failed or was left pending by an
// interrupted upload, then re-uploads assets whose video was removed. One "upload" notification
// summarizes the run.
func (b *Batch) Upload(ctx context.Context, opts PublishOpts, progress chan<- ProgressUpdate) (*BatchResult, error) {
	e := b.engine
	result := &BatchResult{}

	base := map[string]any{
		"status": string(models.AssetPublished),
		"labels": e.pub.RequiredLabels,
	}

	fresh, err := e.assets.List(withCriteria(base, "without_property", models.PropertyRecordID))
	if err != nil {
		return nil, fmt.Errorf("failed to select new assets: %w", err)
	}
	b.uploadAll(ctx, PassNew, fresh, opts, result, progress)

	for _, pass := range []struct {
		name     string
		statuses []models.Status
	}{
		{PassFailed, append(slices.Clone(models.ErrorStatuses), models.StatusPending)},
		{PassRemoved, []models.Status{models.StatusRemoved}},
	} {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		assets, err := b.assetsWithStatus(base, pass.statuses...)
		if err != nil {
			return result, fmt.Errorf("failed to select %s assets: %w", pass.name, err)
		}
		b.uploadAll(ctx, pass.name, assets, opts, result, progress)
	}

	if result.Total() > 0 {
		msg := notify.NewMessage(notify.CauseUpload, entries(result.Succeeded)...)
		for _, f := range result.Failed {
			msg.Failed = append(msg.Failed, notify.Entry{AssetID: f.AssetID, Title: f.Title, Error: f.Err.Error()})
		}
		sendProgress(progress, notifyUpdate(msg.Subject))
		err := e.notifier.Notify(ctx, msg)
		e.metrics.Notification(string(notify.CauseUpload), err)
		if err != nil {
			e.logger.Error("failed to send upload summary", "error", err)
		}
	}

	return result, nil
}

// uploadAll publishes assets not yet handled by an earlier pass of the same run.
func (b *Batch) uploadAll(ctx context.Context, pass string, assets []*models.Asset, opts PublishOpts, result *BatchResult, progress chan<- ProgressUpdate) {
	assets = slices.DeleteFunc(assets, result.handled)
	sendProgress(progress, selectedUpdate(pass, len(assets)))
	for i, asset := range assets {
		if ctx.Err() != nil {
			return
		}
		sendProgress(progress, assetStartedUpdate(Uploading, i+1, len(assets), asset.Title()))

		record, err := b.uploadOne(ctx, asset, opts)
		b.collect(pass, Uploading, i+1, len(assets), asset, record, err, result, progress)
	}
}

// uploadOne makes sure asset will land in a playlist and publishes it.
func (b *Batch) uploadOne(ctx context.Context, asset *models.Asset, opts PublishOpts) (*models.PublicationRecord, error) {
	if err := b.ensurePlaylistLabel(asset); err != nil {
		return nil, err
	}
	return b.engine.Publish(ctx, asset, opts)
}

// ensurePlaylistLabel attaches the default playlist label to an asset that carries no label under
// the playlist root. The label is created under the root the first time it is needed. The playlist
// pass inserts the video once it is published.
func (b *Batch) ensurePlaylistLabel(asset *models.Asset) error {
	e := b.engine
	if len(asset.LabelsUnder(e.pub.PlaylistRoot)) > 0 || e.pub.DefaultPlaylist == "" {
		return nil
	}

	label, err := e.labels.GetByCode(e.pub.DefaultPlaylist)
	if errors.Is(err, shared.ErrLabelNotFound) {
		root, rerr := e.labels.GetByCode(e.pub.PlaylistRoot)
		if rerr != nil {
			return fmt.Errorf("playlist root %s: %w", e.pub.PlaylistRoot, rerr)
		}

		label = models.NewLabel(0, e.pub.DefaultPlaylist, e.pub.DefaultPlaylistTitle, root)
		if err = e.labels.Create(label); errors.Is(err, shared.ErrLabelExists) {
			label, err = e.labels.GetByCode(e.pub.DefaultPlaylist)
		} else if err == nil {
			e.logger.Info("created default playlist label", "code", label.Code(), "id", label.ID())
		}
	}
	if err != nil {
		return err
	}

	if err := e.assets.AddLabel(asset.ID(), label.ID()); err != nil {
		return err
	}
	asset.AddLabel(label)
	return nil
}

// Status reconciles every record that is processing, published or duplicated.
func (b *Batch) Status(ctx context.Context, progress chan<- ProgressUpdate) (*BatchResult, error) {
	e := b.engine
	records, err := e.records.ListByStatus(models.StatusProcessing, models.StatusPublished, models.StatusDuplicated)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}

	result := &BatchResult{}
	sendProgress(progress, selectedUpdate(PassStatus, len(records)))

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		asset, aerr := e.assets.Get(record.AssetID())
		if aerr != nil {
			e.logger.Warn("publication without asset", "record", record.ID(), "asset", record.AssetID(), "error", aerr)
			asset = models.NewAsset(0, record.AssetID(), "")
			asset.SetID(record.AssetID())
		}
		sendProgress(progress, assetStartedUpdate(Reconciling, i+1, len(records), asset.Title()))

		_, err := e.Reconcile(ctx, record)
		b.collect(PassStatus, Reconciling, i+1, len(records), asset, record, err, result, progress)
	}
	return result, nil
}

// Playlists synchronizes playlist membership of every asset whose record is published.
func (b *Batch) Playlists(ctx context.Context, progress chan<- ProgressUpdate) (*BatchResult, error) {
	return b.eachPublished(ctx, PassPlaylists, SyncingPlaylists, progress, func(ctx context.Context, asset *models.Asset, res *Result) error {
		touched, err := b.engine.SyncPlaylists(ctx, asset)
		res.Touched = touched
		return err
	})
}

// Metadata pushes metadata of published assets edited since their last metadata sync.
func (b *Batch) Metadata(ctx context.Context, progress chan<- ProgressUpdate) (*BatchResult, error) {
	return b.eachPublished(ctx, PassMetadata, UpdatingMetadata, progress, func(ctx context.Context, asset *models.Asset, _ *Result) error {
		return b.engine.UpdateMetadata(ctx, asset)
	}, metadataStale)
}

// metadataStale reports whether asset changed after record's last metadata sync.
func metadataStale(asset *models.Asset, record *models.PublicationRecord) bool {
	synced := record.MetadataSyncedAt()
	return synced == nil || asset.UpdatedAt().After(*synced)
}

func (b *Batch) eachPublished(
	ctx context.Context, pass string, phase Phase, progress chan<- ProgressUpdate,
	fn func(context.Context, *models.Asset, *Result) error,
	filters ...func(*models.Asset, *models.PublicationRecord) bool,
) (*BatchResult, error) {
	e := b.engine
	records, err := e.records.ListByStatus(models.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}

	byAsset := make(map[string]*models.PublicationRecord, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		byAsset[r.AssetID()] = r
		ids = append(ids, r.AssetID())
	}

	result := &BatchResult{}
	if len(ids) == 0 {
		sendProgress(progress, selectedUpdate(pass, 0))
		return result, nil
	}

	assets, err := e.assets.List(map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	var selected []*models.Asset
	for _, asset := range assets {
		keep := true
		for _, f := range filters {
			keep = keep && f(asset, byAsset[asset.ID()])
		}
		if keep {
			selected = append(selected, asset)
		}
	}
	sendProgress(progress, selectedUpdate(pass, len(selected)))

	for i, asset := range selected {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, assetStartedUpdate(phase, i+1, len(selected), asset.Title()))

		res := Result{}
		err := fn(ctx, asset, &res)
		b.collectResult(pass, phase, i+1, len(selected), asset, byAsset[asset.ID()], res, err, result, progress)
	}
	return result, nil
}

// assetsWithStatus returns the assets matching base whose record is in one of statuses.
func (b *Batch) assetsWithStatus(base map[string]any, statuses ...models.Status) ([]*models.Asset, error) {
	records, err := b.engine.records.ListByStatus(statuses...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.Status() == models.StatusPending && r.VideoID() != "" {
			continue
		}
		ids = append(ids, r.AssetID())
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return b.engine.assets.List(withCriteria(base, "ids", ids))
}

func (b *Batch) collect(pass string, phase Phase, step, total int, asset *models.Asset, record *models.PublicationRecord, err error, result *BatchResult, progress chan<- ProgressUpdate) {
	b.collectResult(pass, phase, step, total, asset, record, Result{}, err, result, progress)
}

func (b *Batch) collectResult(pass string, phase Phase, step, total int, asset *models.Asset, record *models.PublicationRecord, res Result, err error, result *BatchResult, progress chan<- ProgressUpdate) {
	e := b.engine
	e.metrics.BatchAsset(pass, err)

	if err != nil {
		f := Failure{AssetID: asset.ID(), Title: asset.Title(), Pass: pass, Err: err}
		result.Failed = append(result.Failed, f)
		e.logger.Error("asset failed", "pass", pass, "asset", asset.ID(), "error", err, "precondition", shared.IsPrecondition(err))
		sendProgress(progress, assetFailedUpdate(phase, step, total, f))
		return
	}

	res.AssetID, res.Title, res.Pass = asset.ID(), asset.Title(), pass
	if record != nil {
		res.VideoID, res.Link, res.Status = record.VideoID(), record.Link(), record.Status()
	}
	result.Succeeded = append(result.Succeeded, res)
	sendProgress(progress, assetDoneUpdate(phase, step, total, res))
}

func entries(results []Result) []notify.Entry {
	out := make([]notify.Entry, 0, len(results))
	for _, r := range results {
		out = append(out, notify.Entry{AssetID: r.AssetID, Title: r.Title, VideoID: r.VideoID, Link: r.Link, Status: string(r.Status)})
	}
	return out
}

func withCriteria(base map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[key] = value
	return out
}
