package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
)

// Recover rebuilds the lost publication record of asset from its stored watch link.
//
// The video id comes from the "v" parameter of the link. Its status is inferred from the public
// watch page: a 2xx answer means published, anything else (transport failures included) means
// removed. This is weaker evidence than the status API and is logged as such.
//
// Fails with [shared.ErrNoRecoverableReference] when the asset has no link and with
// [shared.ErrMalformedReference] when the link carries no video id, and with [shared.ErrInvalidInput]
// when the asset already has a record. None of these cases touches the network.
func (e *Engine) Recover(ctx context.Context, asset *models.Asset) (*models.PublicationRecord, error) {
	existing, err := e.records.GetByAssetID(asset.ID())
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: asset %s already has a publication (%s)", shared.ErrInvalidInput, asset.ID(), existing.Status())
	case !errors.Is(err, shared.ErrRecordNotFound):
		return nil, err
	}

	link, ok := asset.Property(models.PropertyWatchURL)
	if !ok {
		return nil, fmt.Errorf("%w: asset %s has no %s property", shared.ErrNoRecoverableReference, asset.ID(), models.PropertyWatchURL)
	}

	videoID, err := shared.VideoIDFromLink(link)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", asset.ID(), err)
	}

	logger := e.logger.With("asset", asset.ID(), "video", videoID)

	status := models.StatusRemoved
	reachable, err := e.prober.Probe(ctx, link)
	switch {
	case err != nil:
		logger.Warn("watch page probe failed, assuming removed", "link", link, "error", err)
	case reachable:
		status = models.StatusPublished
	}
	logger.Warn("status inferred from the public watch page", "status", status)

	record := models.NewPublicationRecord(0, asset.ID())
	if err := record.SetVideoID(videoID); err != nil {
		return nil, err
	}
	record.SetStatus(status)
	record.SetLink(link)
	record.SetEmbed(shared.EmbedMarkup(e.yt.EmbedURL, videoID))

	if err := e.commit(record); err != nil {
		return nil, err
	}

	if err := e.assets.SetProperty(asset.ID(), models.PropertyRecordID, record.ID()); err != nil {
		return nil, fmt.Errorf("failed to link asset %s to recovered publication: %w", asset.ID(), err)
	}
	asset.SetProperty(models.PropertyRecordID, record.ID())

	return record, nil
}
