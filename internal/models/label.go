package models

import (
	"fmt"
	"strings"
)

// PathSeparator separates label codes in a materialized path.
const PathSeparator = "|"

// Label is a node in the hierarchical tag tree.
//
// The path lists every ancestor code followed by the label's own code, e.g. "ROOT|YOUTUBE|CONF|".
// Labels under the playlist root may be bound to a remote playlist.
type Label struct {
	entity
	code       string
	title      string
	parentID   string
	path       string
	playlistID string
	metatag    bool
	display    bool
}

// NewLabel creates a label under parent. A nil parent makes a tree root.
func NewLabel(sequence int, code, title string, parent *Label) *Label {
	l := &Label{entity: newEntity(sequence), code: code, title: title, display: true}
	if parent != nil {
		l.parentID = parent.ID()
		l.path = parent.Path() + code + PathSeparator
	} else {
		l.path = code + PathSeparator
	}
	return l
}

// RestoreLabel rebuilds a stored label.
func RestoreLabel(sequence int, code, title, parentID, path, playlistID string, metatag, display bool) *Label {
	return &Label{
		entity:     entity{sequence: sequence},
		code:       code,
		title:      title,
		parentID:   parentID,
		path:       path,
		playlistID: playlistID,
		metatag:    metatag,
		display:    display,
	}
}

func (l *Label) Code() string { return l.code }
func (l *Label) Title() string { return l.title }
func (l *Label) ParentID() string { return l.parentID }
func (l *Label) Path() string { return l.path }
func (l *Label) PlaylistID() string { return l.playlistID }
func (l *Label) Metatag() bool { return l.metatag }
func (l *Label) Display() bool { return l.display }

func (l *Label) SetTitle(title string) { l.title = title }
func (l *Label) SetPlaylistID(playlistID string) { l.playlistID = playlistID }
func (l *Label) SetMetatag(v bool) { l.metatag = v }
func (l *Label) SetDisplay(v bool) { l.display = v }

// IsBound reports whether the label already has a remote playlist.
func (l *Label) IsBound() bool { return l.playlistID != "" }

// IsDescendantOf reports whether code appears among the label's ancestors.
// A label is never its own descendant.
func (l *Label) IsDescendantOf(code string) bool {
	segments := strings.Split(strings.Trim(l.path, PathSeparator), PathSeparator)
	if len(segments) < 2 {
		return false
	}
	for _, s := range segments[:len(segments)-1] {
		if s == code {
			return true
		}
	}
	return false
}

// Validate checks required label fields.
func (l *Label) Validate() error {
	if l.code == "" {
		return fmt.Errorf("label code is required")
	}
	if strings.Contains(l.code, PathSeparator) {
		return fmt.Errorf("label code %q must not contain %q", l.code, PathSeparator)
	}
	if !strings.HasSuffix(l.path, l.code+PathSeparator) {
		return fmt.Errorf("label path %q does not end with code %q", l.path, l.code)
	}
	return nil
}
