// package services defines the remote contract the publication engine talks to
//
// YouTube Data API v3, public watch page probe
package services

import (
	"context"
)

// Upload states reported by the remote for a video.
const (
	UploadUploaded  = "uploaded"
	UploadProcessed = "processed"
	UploadRejected  = "rejected"
	UploadFailed    = "failed"
	UploadDeleted   = "deleted"
)

// RejectionDuplicate is the rejection reason for an upload that duplicates an existing video.
const RejectionDuplicate = "duplicate"

// RemoteClient is the video platform as seen by the engine.
//
// Every method either returns its payload or an error. Failures from the remote are reported as
// [*RemoteError] so callers can tell not-found, rejection and transient failures apart.
type RemoteClient interface {
	// Upload sends a media file and returns the new video id and its initial upload state.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// CreatePlaylist creates a playlist and returns its id.
	CreatePlaylist(ctx context.Context, title, privacy string) (string, error)

	// InsertIntoPlaylist adds a video to a playlist and returns the playlist item id.
	InsertIntoPlaylist(ctx context.Context, videoID, playlistID string) (string, error)

	// RemoveFromPlaylist deletes a playlist item.
	RemoveFromPlaylist(ctx context.Context, itemID string) error

	// DeleteVideo deletes a video.
	DeleteVideo(ctx context.Context, videoID string) error

	// UpdateMetadata replaces the title, description, tags and category of a video.
	UpdateMetadata(ctx context.Context, videoID string, meta Metadata) error

	// QueryStatus returns the processing state of a video.
	QueryStatus(ctx context.Context, videoID string) (*VideoStatus, error)
}

// UploadRequest describes a media upload.
type UploadRequest struct {
	FilePath    string
	Title       string
	Description string
	Tags        []string
	Category    string
	Privacy     string
}

// UploadResult is the remote's answer to an upload.
type UploadResult struct {
	VideoID      string
	UploadStatus string
}

// Metadata is the editable description of a video.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	Category    string
}

// VideoStatus is the processing state of a remote video.
type VideoStatus struct {
	VideoID         string
	UploadStatus    string
	RejectionReason string
	FailureReason   string
	PrivacyStatus   string
}

// Rejected reports whether the remote refused the video.
func (s *VideoStatus) Rejected() bool { return s.UploadStatus == UploadRejected }

// Duplicate reports whether the video was rejected as a duplicate.
func (s *VideoStatus) Duplicate() bool {
	return s.Rejected() && s.RejectionReason == RejectionDuplicate
}
