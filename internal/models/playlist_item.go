package models

import "strings"

// PlaylistItem is a single media entry in a stream's playlist.
type PlaylistItem struct {
	BaseModel

	StreamID ULID   `gorm:"type:varchar(26);index;not null" json:"stream_id"`
	Title    string `json:"title,omitempty"`

	// Path is the location of the media file within the asset store.
	Path string `gorm:"not null" json:"path"`

	// Position is the item's place in the owner-defined order, starting at 0.
	Position int `gorm:"not null;default:0;index" json:"position"`

	// DurationSeconds is a probed hint, zero when unknown.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`

	// Disabled items stay in the playlist but are skipped at resolve time.
	Disabled bool `gorm:"default:false" json:"disabled"`
}

// TableName returns the database table name.
func (PlaylistItem) TableName() string {
	return "playlist_items"
}

// Validate checks required fields.
func (p *PlaylistItem) Validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return NewValidationError("path", "is required")
	}
	if p.Position < 0 {
		return NewValidationError("position", "must not be negative")
	}
	return nil
}

// Playable reports whether the item should be included when the playlist is
// resolved for dispatch.
func (p *PlaylistItem) Playable() bool {
	return !p.Disabled
}
