package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/services"
	"github.com/desertthunder/ytpub/internal/shared"
)

// DesiredPlaylist is one playlist an asset should belong to, with the label that asks for it.
type DesiredPlaylist struct {
	PlaylistID string
	Label      *models.Label
}

// Desired resolves the playlists asset should belong to.
//
// Every attached label under the playlist root (the root itself excluded) is read fresh from the
// label store. A label without a playlist gets one: the remote playlist is created with the
// label title and bound to the label. Callers can therefore see new playlists and label bindings
// after a call that otherwise only reads.
func (e *Engine) Desired(ctx context.Context, asset *models.Asset) ([]DesiredPlaylist, error) {
	var out []DesiredPlaylist
	seen := map[string]bool{}

	for _, attached := range asset.LabelsUnder(e.pub.PlaylistRoot) {
		label, err := e.labels.Get(attached.ID())
		if err != nil {
			return nil, fmt.Errorf("playlist label %s of asset %s: %w", attached.Code(), asset.ID(), err)
		}

		playlistID, err := e.ensurePlaylist(ctx, label)
		if err != nil {
			return nil, err
		}
		if seen[playlistID] {
			continue
		}
		seen[playlistID] = true
		out = append(out, DesiredPlaylist{PlaylistID: playlistID, Label: label})
	}
	return out, nil
}

// ensurePlaylist returns the playlist bound to label, creating and binding one if needed.
//
// Creation is serialized per label in process. The store binding is a compare-and-swap, so a
// writer that loses a race across processes adopts the winner's playlist.
func (e *Engine) ensurePlaylist(ctx context.Context, label *models.Label) (string, error) {
	if label.IsBound() {
		return label.PlaylistID(), nil
	}

	mu := e.lock(label.ID())
	mu.Lock()
	defer mu.Unlock()

	current, err := e.labels.Get(label.ID())
	if err != nil {
		return "", fmt.Errorf("playlist label %s: %w", label.Code(), err)
	}
	if current.IsBound() {
		label.SetPlaylistID(current.PlaylistID())
		return current.PlaylistID(), nil
	}

	created, err := e.remote.CreatePlaylist(ctx, current.Title(), e.yt.PlaylistPrivacy)
	if err != nil {
		return "", fmt.Errorf("failed to create playlist for label %s: %w", label.Code(), err)
	}
	e.metrics.PlaylistOp("create")

	bound, err := e.labels.BindPlaylist(current.ID(), created)
	if err != nil {
		return "", fmt.Errorf("failed to bind playlist %s to label %s: %w", created, label.Code(), err)
	}
	if bound != created {
		e.logger.Warn("label was bound concurrently, adopting existing playlist", "label", label.Code(), "created", created, "bound", bound)
	} else {
		e.logger.Info("created playlist", "label", label.Code(), "playlist", bound)
	}

	label.SetPlaylistID(bound)
	return bound, nil
}

// diffMembership splits playlist ids into those to add (desired, not known) and those that are
// known but not desired. The two results never share an id.
func diffMembership(desired, known []string) (toAdd, stale []string) {
	for _, p := range desired {
		if !slices.Contains(known, p) && !slices.Contains(toAdd, p) {
			toAdd = append(toAdd, p)
		}
	}
	for _, p := range known {
		if !slices.Contains(desired, p) && !slices.Contains(stale, p) {
			stale = append(stale, p)
		}
	}
	return toAdd, stale
}

// toRemove keeps the stale playlists whose label is gone or no longer on the asset.
func (e *Engine) toRemove(asset *models.Asset, stale []string) ([]string, error) {
	var out []string
	for _, p := range stale {
		label, err := e.labels.GetByPlaylistID(p)
		switch {
		case errors.Is(err, shared.ErrLabelNotFound):
			out = append(out, p)
		case err != nil:
			return nil, err
		case !asset.HasLabel(label.Code()):
			out = append(out, p)
		default:
			e.logger.Debug("keeping playlist of a label outside the playlist root", "asset", asset.ID(), "playlist", p, "label", label.Code())
		}
	}
	return out, nil
}

// SyncPlaylists converges the record's known playlists toward [Engine.Desired] and returns
// the playlist ids it touched.
//
// Nothing happens unless the record is published. The updating flag is committed before the
// first remote mutation and cleared at the end. Every applied add or remove is committed on
// its own. The first failure stops the run without rolling back what was applied; the flag is
// cleared on a best effort basis and a later run picks up from the committed state.
func (e *Engine) SyncPlaylists(ctx context.Context, asset *models.Asset) ([]string, error) {
	record, err := e.RecordFor(ctx, asset)
	if err != nil {
		return nil, err
	}
	if record.Status() != models.StatusPublished {
		return nil, nil
	}

	desired, err := e.Desired(ctx, asset)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]DesiredPlaylist, len(desired))
	ids := make([]string, 0, len(desired))
	for _, d := range desired {
		byID[d.PlaylistID] = d
		ids = append(ids, d.PlaylistID)
	}

	toAdd, stale := diffMembership(ids, record.PlaylistIDs())
	toRemove, err := e.toRemove(asset, stale)
	if err != nil {
		return nil, err
	}
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil, nil
	}

	logger := e.logger.With("asset", asset.ID(), "video", record.VideoID())
	logger.Info("synchronizing playlists", "add", len(toAdd), "remove", len(toRemove))

	record.SetUpdatingPlaylists(true)
	if err := e.commit(record); err != nil {
		return nil, err
	}

	var touched []string
	abort := func(err error) ([]string, error) {
		record.SetUpdatingPlaylists(false)
		if serr := e.records.Save(record); serr != nil {
			logger.Error("failed to clear updating flag", "error", serr)
		}
		return touched, err
	}

	for _, p := range toAdd {
		item, err := e.remote.InsertIntoPlaylist(ctx, record.VideoID(), p)
		if err != nil {
			return abort(fmt.Errorf("failed to add video %s to playlist %s: %w", record.VideoID(), p, err))
		}
		e.metrics.PlaylistOp("insert")

		record.SetPlaylistItem(p, item)
		if err := e.commit(record); err != nil {
			return abort(err)
		}
		touched = append(touched, p)

		label := byID[p].Label
		if !asset.HasLabel(label.Code()) {
			if err := e.assets.AddLabel(asset.ID(), label.ID()); err != nil {
				return abort(err)
			}
			asset.AddLabel(label)
		}
		logger.Debug("added to playlist", "playlist", p, "item", item)
	}

	for _, p := range toRemove {
		item, _ := record.PlaylistItem(p)
		if err := e.remote.RemoveFromPlaylist(ctx, item); err != nil {
			if !services.IsNotFound(err) {
				return abort(fmt.Errorf("failed to remove video %s from playlist %s: %w", record.VideoID(), p, err))
			}
			logger.Warn("playlist item already gone", "playlist", p, "item", item)
		}
		e.metrics.PlaylistOp("remove")

		record.RemovePlaylist(p)
		if err := e.commit(record); err != nil {
			return abort(err)
		}
		touched = append(touched, p)
		logger.Debug("removed from playlist", "playlist", p, "item", item)
	}

	record.SetUpdatingPlaylists(false)
	if err := e.commit(record); err != nil {
		return touched, err
	}
	return touched, nil
}
