package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/services"
	"github.com/desertthunder/ytpub/internal/shared"
)

// PublishOpts overrides the configured upload settings for one upload.
type PublishOpts struct {
	Category string
	Privacy  string
	Force    bool
}

// Publish uploads the playable track of asset as a new video.
//
// The record is created (and linked from the asset) before the upload so that a failed upload
// leaves a record in an error status for the next run to retry. A successful upload leaves the
// record processing, stores the watch link on the asset and attaches the published marker label.
func (e *Engine) Publish(ctx context.Context, asset *models.Asset, opts PublishOpts) (*models.PublicationRecord, error) {
	path := asset.TrackPath()
	if path == "" {
		return nil, fmt.Errorf("%w: asset %s", shared.ErrNoPlayableTrack, asset.ID())
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackFileMissing, path)
	}

	record, err := e.uploadRecord(asset)
	if err != nil {
		return nil, err
	}
	if record.VideoID() != "" && !record.Status().Reuploadable() {
		return nil, fmt.Errorf("%w: asset %s is already %s as %s", shared.ErrInvalidInput, asset.ID(), record.Status(), record.VideoID())
	}

	if opts.Category == "" {
		opts.Category = e.yt.Category
	}
	if opts.Privacy == "" {
		opts.Privacy = e.yt.UploadPrivacy
	}

	req := services.UploadRequest{
		FilePath: path,
		Title:    shared.TruncateTitle(asset.Title()),
		Description: shared.BuildDescription(
			asset.SeriesTitle(), asset.Title(), asset.Subtitle(), asset.Description(), e.assetURL(asset),
		),
		Tags:     shared.BuildKeywords(asset.Keywords()),
		Category: opts.Category,
		Privacy:  opts.Privacy,
	}

	logger := e.logger.With("asset", asset.ID(), "record", record.ID())
	logger.Info("uploading", "file", path, "title", req.Title)

	res, err := e.remote.Upload(ctx, req)
	if err != nil {
		if serr := e.transition(record, uploadFailureStatus(err)); serr != nil {
			logger.Error("failed to record upload failure", "error", serr)
		}
		return record, fmt.Errorf("upload of asset %s failed: %w", asset.ID(), err)
	}

	if err := record.SetVideoID(res.VideoID); err != nil {
		return record, err
	}
	link := shared.WatchLink(e.yt.WatchURL, res.VideoID)
	record.SetLink(link)
	record.SetEmbed(shared.EmbedMarkup(e.yt.EmbedURL, res.VideoID))
	record.SetForce(opts.Force)

	if res.UploadStatus != services.UploadUploaded {
		if err := e.transition(record, models.StatusError); err != nil {
			return record, err
		}
		return record, fmt.Errorf("%w: video %s is %q", shared.ErrUploadRejected, res.VideoID, res.UploadStatus)
	}

	if err := e.transition(record, models.StatusProcessing); err != nil {
		return record, err
	}

	if err := e.assets.SetProperty(asset.ID(), models.PropertyWatchURL, link); err != nil {
		return record, err
	}
	asset.SetProperty(models.PropertyWatchURL, link)

	if err := e.attachMarker(asset); err != nil {
		return record, err
	}

	logger.Info("uploaded", "video", res.VideoID, "link", link)
	return record, nil
}

// uploadRecord returns the record an upload writes to, creating it when the asset has none.
func (e *Engine) uploadRecord(asset *models.Asset) (*models.PublicationRecord, error) {
	record, err := e.records.GetByAssetID(asset.ID())
	if errors.Is(err, shared.ErrRecordNotFound) {
		record = models.NewPublicationRecord(0, asset.ID())
		err = e.commit(record)
	}
	if err != nil {
		return nil, err
	}

	if id, _ := asset.Property(models.PropertyRecordID); id != record.ID() {
		if err := e.assets.SetProperty(asset.ID(), models.PropertyRecordID, record.ID()); err != nil {
			return nil, err
		}
		asset.SetProperty(models.PropertyRecordID, record.ID())
	}
	return record, nil
}

// uploadFailureStatus is http_error when the remote answered with an error status, error otherwise.
func uploadFailureStatus(err error) models.Status {
	var re *services.RemoteError
	if errors.As(err, &re) && re.Code != 0 {
		return models.StatusHTTPError
	}
	return models.StatusError
}

func (e *Engine) assetURL(asset *models.Asset) string {
	if e.pub.AssetURL == "" {
		return ""
	}
	return fmt.Sprintf(e.pub.AssetURL, asset.ID())
}

// metadata builds the remote description of asset.
func (e *Engine) metadata(asset *models.Asset) services.Metadata {
	return services.Metadata{
		Title: shared.TruncateTitle(asset.Title()),
		Description: shared.BuildDescription(
			asset.SeriesTitle(), asset.Title(), asset.Subtitle(), asset.Description(), e.assetURL(asset),
		),
		Tags:     shared.BuildKeywords(asset.Keywords()),
		Category: e.yt.Category,
	}
}

// UpdateMetadata pushes the title, description and keywords of asset to its published video.
//
// Records that are not published are refused with [shared.ErrNotPublished]. A remote failure
// moves the record to update_error.
func (e *Engine) UpdateMetadata(ctx context.Context, asset *models.Asset) error {
	record, err := e.RecordFor(ctx, asset)
	if err != nil {
		return err
	}
	if record.Status() != models.StatusPublished {
		return fmt.Errorf("%w: asset %s is %s", shared.ErrNotPublished, asset.ID(), record.Status())
	}

	if err := e.remote.UpdateMetadata(ctx, record.VideoID(), e.metadata(asset)); err != nil {
		if serr := e.transition(record, models.StatusUpdateError); serr != nil {
			e.logger.Error("failed to record metadata failure", "asset", asset.ID(), "error", serr)
		}
		return fmt.Errorf("failed to update metadata of video %s: %w", record.VideoID(), err)
	}

	now := e.now()
	record.SetMetadataSyncedAt(&now)
	return e.commit(record)
}

// Delete removes the video of asset from every known playlist and from the remote, then marks
// the record removed and detaches the published marker label.
func (e *Engine) Delete(ctx context.Context, asset *models.Asset) error {
	record, err := e.RecordFor(ctx, asset)
	if err != nil {
		return err
	}
	if err := e.deleteRemote(ctx, record); err != nil {
		return err
	}
	if err := e.detachMarker(asset.ID()); err != nil {
		return err
	}
	asset.RemoveLabel(e.pub.PublishedMarker)
	return nil
}

// DeleteOrphan removes a video whose asset no longer exists.
func (e *Engine) DeleteOrphan(ctx context.Context, record *models.PublicationRecord) error {
	return e.deleteRemote(ctx, record)
}

// deleteRemote empties the playlist map item by item, deletes the video and marks the record removed.
// Items and videos the remote no longer knows count as deleted.
func (e *Engine) deleteRemote(ctx context.Context, record *models.PublicationRecord) error {
	if record.VideoID() == "" {
		return fmt.Errorf("%w: publication of asset %s has no video to delete", shared.ErrInvalidInput, record.AssetID())
	}

	logger := e.logger.With("asset", record.AssetID(), "video", record.VideoID())

	for _, p := range record.PlaylistIDs() {
		item, _ := record.PlaylistItem(p)
		if err := e.remote.RemoveFromPlaylist(ctx, item); err != nil && !services.IsNotFound(err) {
			return fmt.Errorf("failed to remove video %s from playlist %s: %w", record.VideoID(), p, err)
		}
		e.metrics.PlaylistOp("remove")
		record.RemovePlaylist(p)
		if err := e.commit(record); err != nil {
			return err
		}
	}

	if err := e.remote.DeleteVideo(ctx, record.VideoID()); err != nil {
		if !services.IsNotFound(err) {
			return fmt.Errorf("failed to delete video %s: %w", record.VideoID(), err)
		}
		logger.Warn("video was already gone")
	}

	record.SetForce(false)
	if err := e.transition(record, models.StatusRemoved); err != nil {
		return err
	}
	logger.Info("deleted video")
	return nil
}
