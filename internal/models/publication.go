package models

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Status is the publication state of a remote video.
type Status string

const (
	StatusPending     Status = "pending"      // record exists, upload not finished
	StatusProcessing  Status = "processing"   // uploaded, remote transcoding in progress
	StatusPublished   Status = "published"    // remote processing finished
	StatusDuplicated  Status = "duplicated"   // remote rejected the upload as a duplicate
	StatusRemoved     Status = "removed"      // remote no longer has the video
	StatusError       Status = "error"        // upload failed
	StatusHTTPError   Status = "http_error"   // upload failed at the transport level
	StatusUpdateError Status = "update_error" // metadata update failed
)

// Statuses lists every known status.
var Statuses = []Status{
	StatusPending, StatusProcessing, StatusPublished, StatusDuplicated,
	StatusRemoved, StatusError, StatusHTTPError, StatusUpdateError,
}

// ErrorStatuses are the failure statuses an asset is retried from.
var ErrorStatuses = []Status{StatusError, StatusHTTPError, StatusUpdateError}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// Reuploadable reports whether a record in this status may receive a new video id.
func (s Status) Reuploadable() bool {
	return s == StatusPending || s == StatusRemoved || slices.Contains(ErrorStatuses, s)
}

// PublicationRecord is the persisted link between an asset and its remote video.
//
// The playlist map goes from remote playlist id to the playlist item id that places the video in it.
type PublicationRecord struct {
	entity
	assetID           string
	videoID           string
	status            Status
	embed             string
	link              string
	playlists         map[string]string
	force             bool
	updatingPlaylists bool
	metadataSyncedAt  *time.Time
}

// NewPublicationRecord creates a pending record for assetID.
func NewPublicationRecord(sequence int, assetID string) *PublicationRecord {
	return &PublicationRecord{
		entity:    newEntity(sequence),
		assetID:   assetID,
		status:    StatusPending,
		playlists: map[string]string{},
	}
}

// RestorePublicationRecord rebuilds a stored record.
func RestorePublicationRecord(sequence int, assetID, videoID string, status Status, embed, link string, playlists map[string]string, force, updating bool) *PublicationRecord {
	if playlists == nil {
		playlists = map[string]string{}
	}
	return &PublicationRecord{
		entity:            entity{sequence: sequence},
		assetID:           assetID,
		videoID:           videoID,
		status:            status,
		embed:             embed,
		link:              link,
		playlists:         playlists,
		force:             force,
		updatingPlaylists: updating,
	}
}

func (p *PublicationRecord) AssetID() string { return p.assetID }
func (p *PublicationRecord) VideoID() string { return p.videoID }
func (p *PublicationRecord) Status() Status { return p.status }
func (p *PublicationRecord) Embed() string { return p.embed }
func (p *PublicationRecord) Link() string { return p.link }
func (p *PublicationRecord) Force() bool { return p.force }
func (p *PublicationRecord) UpdatingPlaylists() bool { return p.updatingPlaylists }
func (p *PublicationRecord) MetadataSyncedAt() *time.Time { return p.metadataSyncedAt }

func (p *PublicationRecord) SetStatus(s Status) { p.status = s }
func (p *PublicationRecord) SetEmbed(v string) { p.embed = v }
func (p *PublicationRecord) SetLink(v string) { p.link = v }
func (p *PublicationRecord) SetForce(v bool) { p.force = v }
func (p *PublicationRecord) SetUpdatingPlaylists(v bool) { p.updatingPlaylists = v }
func (p *PublicationRecord) SetMetadataSyncedAt(t *time.Time) { p.metadataSyncedAt = t }

// SetVideoID assigns the remote video id.
//
// An assigned id only changes while the record is in a re-uploadable status. Replacing it clears
// the playlist map because the old video's playlist items went with it.
func (p *PublicationRecord) SetVideoID(id string) error {
	if p.videoID == id {
		return nil
	}
	if p.videoID != "" && !p.status.Reuploadable() {
		return fmt.Errorf("video id %s cannot be replaced while %s", p.videoID, p.status)
	}
	if p.videoID != "" {
		p.playlists = map[string]string{}
	}
	p.videoID = id
	return nil
}

// Playlists returns a copy of the playlist map.
func (p *PublicationRecord) Playlists() map[string]string {
	return maps.Clone(p.playlists)
}

// PlaylistIDs returns the known playlist ids in sorted order.
func (p *PublicationRecord) PlaylistIDs() []string {
	return slices.Sorted(maps.Keys(p.playlists))
}

// PlaylistItem returns the item id that places the video in playlistID.
func (p *PublicationRecord) PlaylistItem(playlistID string) (string, bool) {
	item, ok := p.playlists[playlistID]
	return item, ok
}

// SetPlaylistItem records membership in playlistID.
func (p *PublicationRecord) SetPlaylistItem(playlistID, itemID string) {
	if p.playlists == nil {
		p.playlists = map[string]string{}
	}
	p.playlists[playlistID] = itemID
}

// RemovePlaylist forgets membership in playlistID.
func (p *PublicationRecord) RemovePlaylist(playlistID string) {
	delete(p.playlists, playlistID)
}

// Validate checks required record fields.
func (p *PublicationRecord) Validate() error {
	if p.assetID == "" {
		return fmt.Errorf("publication asset id is required")
	}
	if !p.status.Valid() {
		return fmt.Errorf("invalid publication status %q", p.status)
	}
	if p.status != StatusPending && p.status != StatusError && p.status != StatusHTTPError && p.videoID == "" {
		return fmt.Errorf("publication in status %s requires a video id", p.status)
	}
	return nil
}
