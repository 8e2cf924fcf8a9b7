package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpub/internal/retry"
	"github.com/desertthunder/ytpub/internal/shared"
	"github.com/desertthunder/ytpub/internal/telemetry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeOpts bounds every call made by [YouTubeService].
type YouTubeOpts struct {
	Timeout           time.Duration // per attempt, all calls but uploads
	UploadTimeout     time.Duration // per attempt, uploads
	Retry             retry.Config
	RequestsPerSecond float64 // zero or less disables spacing
	Logger            *log.Logger
	Metrics           *telemetry.Metrics
}

// YouTubeOptsFromConfig maps the [shared.YouTubeConfig] call policy onto [YouTubeOpts].
func YouTubeOptsFromConfig(c shared.YouTubeConfig) YouTubeOpts {
	rc := retry.DefaultConfig()
	rc.MaxRetries = c.MaxRetries
	if c.InitialBackoff > 0 {
		rc.InitialBackoff = c.InitialBackoff
	}
	if c.MaxBackoff > 0 {
		rc.MaxBackoff = c.MaxBackoff
	}
	return YouTubeOpts{
		Timeout:           c.RequestTimeout,
		UploadTimeout:     c.UploadTimeout,
		Retry:             rc,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// YouTubeService implements [RemoteClient] on the YouTube Data API v3.
type YouTubeService struct {
	svc     *youtube.Service
	limiter *rate.Limiter
	opts    YouTubeOpts
	logger  *log.Logger
	metrics *telemetry.Metrics
}

// NewYouTubeService wraps an API client with timeouts, retries and rate limiting.
func NewYouTubeService(svc *youtube.Service, opts YouTubeOpts) *YouTubeService {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &YouTubeService{
		svc:     svc,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// NewYouTubeServiceFromFiles builds an authorized client from an OAuth client secret and a stored token.
//
// The token file holds an [oauth2.Token] as JSON. It is produced outside this program and only read here.
func NewYouTubeServiceFromFiles(ctx context.Context, secretPath, tokenPath string, opts YouTubeOpts) (*YouTubeService, error) {
	secret, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("%w: client secret: %v", shared.ErrMissingCredentials, err)
	}

	config, err := google.ConfigFromJSON(secret, youtube.YoutubeScope, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("%w: client secret: %v", shared.ErrInvalidCredentials, err)
	}

	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, err
	}

	return NewYouTubeServiceWithClient(ctx, config.Client(ctx, token), "", opts)
}

// NewYouTubeServiceWithClient builds a service on an already authorized HTTP client.
// A non-empty endpoint overrides the API base URL.
func NewYouTubeServiceWithClient(ctx context.Context, client *http.Client, endpoint string, opts YouTubeOpts) (*YouTubeService, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}

	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return NewYouTubeService(svc, opts), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: token: %v", shared.ErrMissingCredentials, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: token: %v", shared.ErrInvalidCredentials, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token file %s has neither access nor refresh token", shared.ErrInvalidCredentials, path)
	}
	return &token, nil
}

// Upload sends the file at req.FilePath as a new video.
func (s *YouTubeService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrTrackFileMissing, req.FilePath, err)
	}
	defer f.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  req.Category,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: req.Privacy},
	}

	var res *youtube.Video
	err = s.call(ctx, "videos.insert", s.opts.UploadTimeout, func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		var err error
		res, err = s.svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &UploadResult{VideoID: res.Id}
	if res.Status != nil {
		out.UploadStatus = res.Status.UploadStatus
	}
	return out, nil
}

// CreatePlaylist creates a playlist with the given privacy status.
func (s *YouTubeService) CreatePlaylist(ctx context.Context, title, privacy string) (string, error) {
	playlist := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: title},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: privacy},
	}

	var res *youtube.Playlist
	err := s.call(ctx, "playlists.insert", s.opts.Timeout, func(ctx context.Context) error {
		var err error
		res, err = s.svc.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	return res.Id, nil
}

// InsertIntoPlaylist appends a video to a playlist.
func (s *YouTubeService) InsertIntoPlaylist(ctx context.Context, videoID, playlistID string) (string, error) {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}

	var res *youtube.PlaylistItem
	err := s.call(ctx, "playlistItems.insert", s.opts.Timeout, func(ctx context.Context) error {
		var err error
		res, err = s.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	return res.Id, nil
}

// RemoveFromPlaylist deletes a playlist item.
func (s *YouTubeService) RemoveFromPlaylist(ctx context.Context, itemID string) error {
	return s.call(ctx, "playlistItems.delete", s.opts.Timeout, func(ctx context.Context) error {
		return s.svc.PlaylistItems.Delete(itemID).Context(ctx).Do()
	})
}

// DeleteVideo deletes a video.
func (s *YouTubeService) DeleteVideo(ctx context.Context, videoID string) error {
	return s.call(ctx, "videos.delete", s.opts.Timeout, func(ctx context.Context) error {
		return s.svc.Videos.Delete(videoID).Context(ctx).Do()
	})
}

// UpdateMetadata replaces the snippet of a video.
func (s *YouTubeService) UpdateMetadata(ctx context.Context, videoID string, meta Metadata) error {
	video := &youtube.Video{
		Id: videoID,
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.Category,
		},
	}

	return s.call(ctx, "videos.update", s.opts.Timeout, func(ctx context.Context) error {
		_, err := s.svc.Videos.Update([]string{"snippet"}, video).Context(ctx).Do()
		return err
	})
}

// QueryStatus reads the status part of a video.
//
// The list endpoint answers an unknown id with an empty page, which is reported as not found.
func (s *YouTubeService) QueryStatus(ctx context.Context, videoID string) (*VideoStatus, error) {
	var res *youtube.VideoListResponse
	err := s.call(ctx, "videos.list", s.opts.Timeout, func(ctx context.Context) error {
		var err error
		res, err = s.svc.Videos.List([]string{"status"}).Id(videoID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(res.Items) == 0 {
		return nil, &RemoteError{
			Op:     "videos.list",
			Code:   http.StatusNotFound,
			Reason: "videoNotFound",
			Detail: fmt.Sprintf("Video with id %s %s.", videoID, NotFoundSignature),
		}
	}

	item := res.Items[0]
	out := &VideoStatus{VideoID: item.Id}
	if item.Status != nil {
		out.UploadStatus = item.Status.UploadStatus
		out.RejectionReason = item.Status.RejectionReason
		out.FailureReason = item.Status.FailureReason
		out.PrivacyStatus = item.Status.PrivacyStatus
	}
	return out, nil
}

// call runs fn under the rate limiter with a per-attempt timeout and bounded retries.
func (s *YouTubeService) call(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	start := time.Now()

	onRetry := func(attempt int, err error, wait time.Duration) {
		s.logger.Warn("retrying remote call", "op", op, "attempt", attempt, "wait", wait, "error", err)
	}

	err := retry.Do(ctx, s.opts.Retry, IsTransient, onRetry, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(op, err)
	})

	s.metrics.RemoteCall(op, time.Since(start), err)
	if err != nil {
		s.logger.Debug("remote call failed", "op", op, "elapsed", time.Since(start), "error", err)
	}
	return err
}
