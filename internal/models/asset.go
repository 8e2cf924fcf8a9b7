package models

import (
	"fmt"
	"maps"
	"slices"
)

// Asset property keys written by the publication engine.
const (
	PropertyRecordID = "youtube"    // id of the asset's publication record
	PropertyWatchURL = "youtubeurl" // watch link kept for orphan recovery
)

// AssetStatus is the catalog visibility of an asset.
type AssetStatus string

const (
	AssetPublished AssetStatus = "published"
	AssetHidden    AssetStatus = "hidden"
	AssetBlocked   AssetStatus = "blocked"
)

// Asset is a piece of media in the local catalog.
//
// The engine only writes properties and label membership; everything else is edited elsewhere.
type Asset struct {
	entity
	title       string
	subtitle    string
	description string
	seriesTitle string
	keywords    string
	status      AssetStatus
	trackPath   string
	properties  map[string]string
	labels      []*Label
}

// NewAsset creates a published asset with the given title and track.
func NewAsset(sequence int, title, trackPath string) *Asset {
	return &Asset{
		entity:     newEntity(sequence),
		title:      title,
		trackPath:  trackPath,
		status:     AssetPublished,
		properties: map[string]string{},
	}
}

func (a *Asset) Title() string { return a.title }
func (a *Asset) Subtitle() string { return a.subtitle }
func (a *Asset) Description() string { return a.description }
func (a *Asset) SeriesTitle() string { return a.seriesTitle }
func (a *Asset) Keywords() string { return a.keywords }
func (a *Asset) Status() AssetStatus { return a.status }
func (a *Asset) TrackPath() string { return a.trackPath }

func (a *Asset) SetTitle(v string) { a.title = v }
func (a *Asset) SetSubtitle(v string) { a.subtitle = v }
func (a *Asset) SetDescription(v string) { a.description = v }
func (a *Asset) SetSeriesTitle(v string) { a.seriesTitle = v }
func (a *Asset) SetKeywords(v string) { a.keywords = v }
func (a *Asset) SetStatus(v AssetStatus) { a.status = v }
func (a *Asset) SetTrackPath(v string) { a.trackPath = v }

// Property returns the value stored under key and whether it is set.
func (a *Asset) Property(key string) (string, bool) {
	v, ok := a.properties[key]
	return v, ok && v != ""
}

// Properties returns a copy of all properties.
func (a *Asset) Properties() map[string]string {
	return maps.Clone(a.properties)
}

// SetProperty stores a property value. An empty value removes the key.
func (a *Asset) SetProperty(key, value string) {
	if a.properties == nil {
		a.properties = map[string]string{}
	}
	if value == "" {
		delete(a.properties, key)
		return
	}
	a.properties[key] = value
}

// Labels returns the labels attached to the asset.
func (a *Asset) Labels() []*Label {
	return slices.Clone(a.labels)
}

// SetLabels replaces the attached labels.
func (a *Asset) SetLabels(labels []*Label) {
	a.labels = slices.Clone(labels)
}

// HasLabel reports whether a label with code is attached.
func (a *Asset) HasLabel(code string) bool {
	return slices.ContainsFunc(a.labels, func(l *Label) bool { return l.Code() == code })
}

// AddLabel attaches l unless a label with the same code is already present.
func (a *Asset) AddLabel(l *Label) {
	if !a.HasLabel(l.Code()) {
		a.labels = append(a.labels, l)
	}
}

// RemoveLabel detaches the label with code.
func (a *Asset) RemoveLabel(code string) {
	a.labels = slices.DeleteFunc(a.labels, func(l *Label) bool { return l.Code() == code })
}

// LabelsUnder returns the attached labels that descend from rootCode, excluding the root itself.
func (a *Asset) LabelsUnder(rootCode string) []*Label {
	var out []*Label
	for _, l := range a.labels {
		if l.Code() != rootCode && l.IsDescendantOf(rootCode) {
			out = append(out, l)
		}
	}
	return out
}

// Validate checks required asset fields.
func (a *Asset) Validate() error {
	if a.title == "" {
		return fmt.Errorf("asset title is required")
	}
	switch a.status {
	case AssetPublished, AssetHidden, AssetBlocked:
	default:
		return fmt.Errorf("invalid asset status %q", a.status)
	}
	return nil
}
