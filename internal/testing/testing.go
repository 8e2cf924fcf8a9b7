// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/desertthunder/ytpub/internal/notify"
	"github.com/desertthunder/ytpub/internal/services"
)

// Remote operation names used by [FakeRemote] for call counts and injected failures.
const (
	OpUpload         = "upload"
	OpCreatePlaylist = "create_playlist"
	OpInsert         = "insert"
	OpRemove         = "remove"
	OpDelete         = "delete"
	OpUpdate         = "update"
	OpStatus         = "status"
)

// FakeRemote is an in-memory [services.RemoteClient].
//
// Videos, playlists and playlist items live in maps. Unknown ids answer with a 404 [services.RemoteError].
type FakeRemote struct {
	mu           sync.Mutex
	videos       map[string]*services.VideoStatus
	playlists    map[string]string    // playlist id -> title
	items        map[string][2]string // item id -> {video id, playlist id}
	metadata     map[string]services.Metadata
	calls        map[string]int
	errs         map[string][]error
	seq          int
	UploadStatus string // status reported by Upload, defaults to "uploaded"
}

// NewFakeRemote creates an empty remote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		videos:    map[string]*services.VideoStatus{},
		playlists: map[string]string{},
		items:     map[string][2]string{},
		metadata:  map[string]services.Metadata{},
		calls:     map[string]int{},
		errs:      map[string][]error{},
	}
}

// Fail queues errors returned by the next calls of op, one per call.
func (f *FakeRemote) Fail(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

// Count returns how many times op was called.
func (f *FakeRemote) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (f *FakeRemote) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// ResetCalls clears the call counters.
func (f *FakeRemote) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

// AddVideo registers a video with an upload status.
func (f *FakeRemote) AddVideo(videoID, uploadStatus string) {
	f.SetStatus(videoID, uploadStatus, "")
}

// SetStatus changes the reported status of a video.
func (f *FakeRemote) SetStatus(videoID, uploadStatus, rejectionReason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[videoID] = &services.VideoStatus{VideoID: videoID, UploadStatus: uploadStatus, RejectionReason: rejectionReason}
}

// Forget removes a video as if it had been deleted remotely.
func (f *FakeRemote) Forget(videoID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.videos, videoID)
}

// AddPlaylist registers an existing playlist.
func (f *FakeRemote) AddPlaylist(playlistID, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[playlistID] = title
}

// Playlists returns the ids of every playlist.
func (f *FakeRemote) Playlists() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.playlists))
	for id := range f.playlists {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// VideosIn returns the videos placed in playlistID.
func (f *FakeRemote) VideosIn(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, item := range f.items {
		if item[1] == playlistID {
			out = append(out, item[0])
		}
	}
	sort.Strings(out)
	return out
}

// Metadata returns the last metadata pushed for a video.
func (f *FakeRemote) Metadata(videoID string) (services.Metadata, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metadata[videoID]
	return m, ok
}

// HasVideo reports whether the remote knows videoID.
func (f *FakeRemote) HasVideo(videoID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.videos[videoID]
	return ok
}

// begin counts a call and pops its injected failure. Callers hold f.mu.
func (f *FakeRemote) begin(op string) error {
	f.calls[op]++
	if queued := f.errs[op]; len(queued) > 0 {
		f.errs[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (f *FakeRemote) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *FakeRemote) Upload(ctx context.Context, req services.UploadRequest) (*services.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpUpload); err != nil {
		return nil, err
	}

	status := f.UploadStatus
	if status == "" {
		status = services.UploadUploaded
	}
	id := f.next("vid")
	f.videos[id] = &services.VideoStatus{VideoID: id, UploadStatus: status}
	f.metadata[id] = services.Metadata{Title: req.Title, Description: req.Description, Tags: req.Tags, Category: req.Category}
	return &services.UploadResult{VideoID: id, UploadStatus: status}, nil
}

func (f *FakeRemote) CreatePlaylist(ctx context.Context, title, privacy string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpCreatePlaylist); err != nil {
		return "", err
	}

	id := f.next("PL")
	f.playlists[id] = title
	return id, nil
}

func (f *FakeRemote) InsertIntoPlaylist(ctx context.Context, videoID, playlistID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpInsert); err != nil {
		return "", err
	}
	if _, ok := f.playlists[playlistID]; !ok {
		return "", NotFound("playlistItems.insert", "playlistNotFound")
	}

	id := f.next("item")
	f.items[id] = [2]string{videoID, playlistID}
	return id, nil
}

func (f *FakeRemote) RemoveFromPlaylist(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpRemove); err != nil {
		return err
	}
	if _, ok := f.items[itemID]; !ok {
		return NotFound("playlistItems.delete", "playlistItemNotFound")
	}
	delete(f.items, itemID)
	return nil
}

func (f *FakeRemote) DeleteVideo(ctx context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpDelete); err != nil {
		return err
	}
	if _, ok := f.videos[videoID]; !ok {
		return NotFound("videos.delete", "videoNotFound")
	}
	delete(f.videos, videoID)
	return nil
}

func (f *FakeRemote) UpdateMetadata(ctx context.Context, videoID string, meta services.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpUpdate); err != nil {
		return err
	}
	if _, ok := f.videos[videoID]; !ok {
		return NotFound("videos.update", "videoNotFound")
	}
	f.metadata[videoID] = meta
	return nil
}

func (f *FakeRemote) QueryStatus(ctx context.Context, videoID string) (*services.VideoStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpStatus); err != nil {
		return nil, err
	}
	v, ok := f.videos[videoID]
	if !ok {
		return nil, NotFound("videos.list", "videoNotFound")
	}
	out := *v
	return &out, nil
}

// NotFound returns a structured 404 remote error.
func NotFound(op, reason string) error {
	return &services.RemoteError{Op: op, Code: http.StatusNotFound, Reason: reason, Detail: "resource " + services.NotFoundSignature}
}

// NotFoundText returns a remote error that only carries the free-text not found signature.
func NotFoundText(videoID string) error {
	return &services.RemoteError{Op: "videos.list", Detail: fmt.Sprintf("Video with id %s %s.", videoID, services.NotFoundSignature)}
}

// Unavailable returns a transient 503 remote error.
func Unavailable(op string) error {
	return &services.RemoteError{Op: op, Code: http.StatusServiceUnavailable, Reason: "backendError", Detail: "backend unavailable"}
}

// Forbidden returns a permanent 403 remote error.
func Forbidden(op string) error {
	return &services.RemoteError{Op: op, Code: http.StatusForbidden, Reason: "forbidden", Detail: "forbidden"}
}

// RecordingNotifier keeps every message it is given.
type RecordingNotifier struct {
	mu       sync.Mutex
	Messages []notify.Message
	Err      error // returned from every Notify call
}

func (r *RecordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, msg)
	return r.Err
}

// Count returns the number of messages with cause.
func (r *RecordingNotifier) Count(cause notify.Cause) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.Messages {
		if m.Cause == cause {
			n++
		}
	}
	return n
}

// StubProber answers probes from a fixed table.
type StubProber struct {
	mu        sync.Mutex
	Reachable map[string]bool
	Err       error
	Calls     int
}

func (s *StubProber) Probe(ctx context.Context, link string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return false, s.Err
	}
	return s.Reachable[link], nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MustWriteFile writes content to path or fails the test.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
