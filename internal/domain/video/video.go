package video

import "time"

// ProcessingState describes where an asset is in the transcoding lifecycle.
type ProcessingState string

const (
	StateUploaded   ProcessingState = "uploaded"
	StateProcessing ProcessingState = "processing"
	StateReady      ProcessingState = "ready"
	StateFailed     ProcessingState = "failed"
)

// Terminal reports whether a pipeline run may end in this state.
func (s ProcessingState) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Asset is one uploaded media item and its derived artifacts.
type Asset struct {
	ID              string
	Title           string
	Description     string
	GenreID         *string
	GenreName       *string
	SourcePath      string
	ThumbnailPath   *string
	OutputDir       *string
	DurationSeconds *int
	Published       bool
	State           ProcessingState
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Genre is a named category; assets reference at most one.
type Genre struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Rendition records one generated quality variant of an asset.
// At most one exists per (asset, tier) pair.
type Rendition struct {
	VideoID      string
	Tier         Tier
	ManifestPath string
	BitrateKbps  int
	CreatedAt    time.Time
}
