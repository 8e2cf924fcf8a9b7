package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/notify"
	"github.com/desertthunder/ytpub/internal/services"
	"github.com/desertthunder/ytpub/internal/shared"
)

// Outcome reports what a reconciliation did to a record.
type Outcome struct {
	Record   *models.PublicationRecord
	From     models.Status
	To       models.Status
	Notified notify.Cause // empty when no notification was sent
}

// Changed reports whether the status moved.
func (o *Outcome) Changed() bool { return o.From != o.To }

// Reconcile polls the remote status of record's video and drives the status machine.
//
//   - not found: removed, published marker detached, "status removed" sent. Not an error.
//   - processed while processing: published, "finished publication" sent.
//   - uploaded: processing, saved only when it changes, nothing sent.
//   - rejected as duplicate while not duplicated: duplicated, "duplicated" sent.
//
// Any other remote failure is returned and the record is left untouched. Notifications go out
// after the status is committed, so the store never lags behind a message.
func (e *Engine) Reconcile(ctx context.Context, record *models.PublicationRecord) (*Outcome, error) {
	if record.VideoID() == "" {
		return nil, fmt.Errorf("%w: publication of asset %s has no video id", shared.ErrInvalidInput, record.AssetID())
	}

	logger := e.logger.With("asset", record.AssetID(), "video", record.VideoID())
	out := &Outcome{Record: record, From: record.Status(), To: record.Status()}

	remote, err := e.remote.QueryStatus(ctx, record.VideoID())
	if err != nil {
		if !services.IsNotFound(err) {
			return nil, fmt.Errorf("failed to query status of video %s: %w", record.VideoID(), err)
		}
		return e.markRemoved(ctx, record, out)
	}

	switch {
	case remote.UploadStatus == services.UploadProcessed && record.Status() == models.StatusProcessing:
		if err := e.transition(record, models.StatusPublished); err != nil {
			return nil, err
		}
		out.To = models.StatusPublished
		out.Notified = notify.CauseFinished
	case remote.UploadStatus == services.UploadUploaded:
		if record.Status() != models.StatusProcessing {
			if err := e.transition(record, models.StatusProcessing); err != nil {
				return nil, err
			}
			out.To = models.StatusProcessing
		}
	case remote.Duplicate() && record.Status() != models.StatusDuplicated:
		if err := e.transition(record, models.StatusDuplicated); err != nil {
			return nil, err
		}
		out.To = models.StatusDuplicated
		out.Notified = notify.CauseDuplicated
	default:
		logger.Debug("no status change", "status", record.Status(), "remote", remote.UploadStatus, "reason", remote.RejectionReason)
	}

	if out.Notified != "" {
		e.send(ctx, out.Notified, record)
	}
	return out, nil
}

// markRemoved records that the remote no longer has the video.
// The marker and the notification only happen on the transition into removed.
func (e *Engine) markRemoved(ctx context.Context, record *models.PublicationRecord, out *Outcome) (*Outcome, error) {
	if record.Status() == models.StatusRemoved {
		return out, nil
	}

	if err := e.transition(record, models.StatusRemoved); err != nil {
		return nil, err
	}
	out.To = models.StatusRemoved

	if err := e.detachMarker(record.AssetID()); err != nil {
		e.logger.Error("failed to detach published marker", "asset", record.AssetID(), "error", err)
	}

	out.Notified = notify.CauseRemoved
	e.send(ctx, out.Notified, record)
	return out, nil
}
