package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/notify"
	"github.com/desertthunder/ytpub/internal/services"
	"github.com/desertthunder/ytpub/internal/shared"
	"github.com/desertthunder/ytpub/internal/telemetry"
	"github.com/puzpuzpuz/xsync/v3"
)

// RecordStore persists publication records. Every Save is durable on return.
type RecordStore interface {
	GetByAssetID(assetID string) (*models.PublicationRecord, error)
	ListByVideoIDs(videoIDs ...string) ([]*models.PublicationRecord, error)
	ListByStatus(statuses ...models.Status) ([]*models.PublicationRecord, error)
	Save(record *models.PublicationRecord) error
}

// LabelStore reads labels and writes playlist bindings.
type LabelStore interface {
	Get(id string) (*models.Label, error)
	GetByCode(code string) (*models.Label, error)
	GetByPlaylistID(playlistID string) (*models.Label, error)
	Create(label *models.Label) error
	// BindPlaylist binds playlistID unless the label is already bound and returns the winning id.
	BindPlaylist(labelID, playlistID string) (string, error)
}

// AssetStore reads assets and writes the few asset fields the engine owns.
type AssetStore interface {
	Get(id string) (*models.Asset, error)
	List(criteria map[string]any) ([]*models.Asset, error)
	SetProperty(assetID, key, value string) error
	AddLabel(assetID, labelID string) error
	RemoveLabel(assetID, labelID string) error
}

// Prober checks whether a public watch page answers.
type Prober interface {
	Probe(ctx context.Context, link string) (bool, error)
}

// EngineOpts carries every collaborator of an [Engine].
type EngineOpts struct {
	Remote      services.RemoteClient
	Records     RecordStore
	Labels      LabelStore
	Assets      AssetStore
	Prober      Prober          // defaults to [services.PageProber]
	Notifier    notify.Notifier // defaults to [notify.Nop]
	Logger      *log.Logger
	Metrics     *telemetry.Metrics
	Publication shared.PublicationConfig
	YouTube     shared.YouTubeConfig
	Now         func() time.Time
}

// Engine reconciles publication records with the remote platform.
//
// One engine may serve several goroutines. Playlist creation for a label is serialized in
// process and guarded by a compare-and-swap in the label store.
type Engine struct {
	remote   services.RemoteClient
	records  RecordStore
	labels   LabelStore
	assets   AssetStore
	prober   Prober
	notifier notify.Notifier
	logger   *log.Logger
	metrics  *telemetry.Metrics
	pub      shared.PublicationConfig
	yt       shared.YouTubeConfig
	locks    *xsync.MapOf[string, *sync.Mutex]
	now      func() time.Time
}

// NewEngine validates opts and creates an [Engine].
func NewEngine(opts EngineOpts) (*Engine, error) {
	switch {
	case opts.Remote == nil:
		return nil, fmt.Errorf("%w: remote client", shared.ErrMissingArgument)
	case opts.Records == nil:
		return nil, fmt.Errorf("%w: record store", shared.ErrMissingArgument)
	case opts.Labels == nil:
		return nil, fmt.Errorf("%w: label store", shared.ErrMissingArgument)
	case opts.Assets == nil:
		return nil, fmt.Errorf("%w: asset store", shared.ErrMissingArgument)
	case opts.Publication.PlaylistRoot == "":
		return nil, fmt.Errorf("%w: playlist root label", shared.ErrMissingConfig)
	}

	if opts.Prober == nil {
		opts.Prober = services.NewPageProber(nil)
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		remote:   opts.Remote,
		records:  opts.Records,
		labels:   opts.Labels,
		assets:   opts.Assets,
		prober:   opts.Prober,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		pub:      opts.Publication,
		yt:       opts.YouTube,
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
		now:      opts.Now,
	}, nil
}

// RecordFor returns the record of asset, rebuilding it with [Engine.Recover] when the store has none.
func (e *Engine) RecordFor(ctx context.Context, asset *models.Asset) (*models.PublicationRecord, error) {
	record, err := e.records.GetByAssetID(asset.ID())
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, shared.ErrRecordNotFound) {
		return nil, err
	}

	record, err = e.Recover(ctx, asset)
	if err != nil {
		return nil, err
	}
	e.logger.Warn("publication record was missing and has been rebuilt", "asset", asset.ID(), "record", record.ID(), "status", record.Status())
	return record, nil
}

// commit saves record.
func (e *Engine) commit(record *models.PublicationRecord) error {
	if err := e.records.Save(record); err != nil {
		return fmt.Errorf("failed to save publication of asset %s: %w", record.AssetID(), err)
	}
	return nil
}

// transition moves record to status and commits it.
func (e *Engine) transition(record *models.PublicationRecord, status models.Status) error {
	from := record.Status()
	record.SetStatus(status)
	if err := e.commit(record); err != nil {
		record.SetStatus(from)
		return err
	}
	if from != status {
		e.metrics.Transition(string(from), string(status))
		e.logger.Info("publication status changed", "asset", record.AssetID(), "video", record.VideoID(), "from", from, "to", status)
	}
	return nil
}

// lock returns the mutex serializing playlist creation for a label.
func (e *Engine) lock(labelID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrCompute(labelID, func() *sync.Mutex { return &sync.Mutex{} })
	return mu
}

// attachMarker adds the published marker label to the asset.
func (e *Engine) attachMarker(asset *models.Asset) error {
	marker, err := e.labels.GetByCode(e.pub.PublishedMarker)
	if err != nil {
		return fmt.Errorf("published marker %s: %w", e.pub.PublishedMarker, err)
	}
	if err := e.assets.AddLabel(asset.ID(), marker.ID()); err != nil {
		return err
	}
	asset.AddLabel(marker)
	return nil
}

// detachMarker removes the published marker label from an asset.
// A marker label missing from the store is only worth a warning.
func (e *Engine) detachMarker(assetID string) error {
	marker, err := e.labels.GetByCode(e.pub.PublishedMarker)
	if errors.Is(err, shared.ErrLabelNotFound) {
		e.logger.Warn("published marker label is not defined", "code", e.pub.PublishedMarker)
		return nil
	} else if err != nil {
		return err
	}
	return e.assets.RemoveLabel(assetID, marker.ID())
}

// send delivers a single-entry message for record. Delivery failures are logged.
func (e *Engine) send(ctx context.Context, cause notify.Cause, record *models.PublicationRecord) {
	entry := notify.Entry{
		AssetID: record.AssetID(),
		Title:   record.AssetID(),
		VideoID: record.VideoID(),
		Link:    record.Link(),
		Status:  string(record.Status()),
	}
	if asset, err := e.assets.Get(record.AssetID()); err == nil {
		entry.Title = asset.Title()
	}

	err := e.notifier.Notify(ctx, notify.NewMessage(cause, entry))
	e.metrics.Notification(string(cause), err)
	if err != nil {
		e.logger.Error("failed to send notification", "cause", cause, "asset", record.AssetID(), "error", err)
	}
}
