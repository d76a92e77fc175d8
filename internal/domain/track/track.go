// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resolution represents how far a track has progressed from a user query
// toward a playable stream.
type Resolution string

const (
	// ResolutionPending means only display metadata is known; the stream
	// URL is fetched lazily when the track is about to play.
	ResolutionPending Resolution = "PENDING"
	// ResolutionResolved means the track carries a playable stream URL.
	ResolutionResolved Resolution = "RESOLVED"
	// ResolutionFailed means resolution was attempted and did not succeed.
	ResolutionFailed Resolution = "FAILED"
)

// SourceType identifies where a track was requested from.
type SourceType string

const (
	SourceYouTube  SourceType = "YOUTUBE"
	SourceSpotify  SourceType = "SPOTIFY"
	SourceSearch   SourceType = "SEARCH"
	SourceAutoplay SourceType = "AUTOPLAY"
)

// Requester identifies who put a track into a queue. Autoplay tracks use
// a synthetic requester so the UI can label them.
type Requester struct {
	ID   string // Discord user ID, or "autoplay"
	Name string // Display name at request time
}

// AutoplayRequester is the synthetic requester attached to tracks added
// by the recommendation loop.
var AutoplayRequester = Requester{ID: "autoplay", Name: "Autoplay"}

// Track represents one playable item. Identity is the queue-entry ID, not
// the source URL: the same video queued twice is two tracks.
type Track struct {
	ID         string        // Queue entry UUID
	Title      string        // Display title
	URL        string        // Canonical page URL (YouTube watch URL etc.)
	StreamURL  string        // Direct audio stream URL, empty until resolved
	Duration   time.Duration // 0 until known
	Thumbnail  string        // Thumbnail URL, optional
	Source     SourceType
	Resolution Resolution
	Requester  Requester
	AddedAt    time.Time
}

// New creates a pending track with a fresh entry ID.
func New(title, url string, source SourceType, req Requester) Track {
	return Track{
		ID:         uuid.NewString(),
		Title:      title,
		URL:        url,
		Source:     source,
		Resolution: ResolutionPending,
		Requester:  req,
		AddedAt:    time.Now(),
	}
}

// Resolved reports whether the track carries a playable stream URL.
func (t *Track) Resolved() bool {
	return t.Resolution == ResolutionResolved && t.StreamURL != ""
}

// MarkResolved records the stream URL and fills metadata that was unknown
// at enqueue time. Zero values leave existing fields untouched.
func (t *Track) MarkResolved(streamURL string, duration time.Duration, title, thumbnail string) {
	t.StreamURL = streamURL
	t.Resolution = ResolutionResolved
	if duration > 0 {
		t.Duration = duration
	}
	if title != "" {
		t.Title = title
	}
	if thumbnail != "" {
		t.Thumbnail = thumbnail
	}
}

// MarkFailed records a failed resolution attempt.
func (t *Track) MarkFailed() {
	t.Resolution = ResolutionFailed
	t.StreamURL = ""
}

// FormatDuration renders a duration as M:SS or H:MM:SS. Unknown durations
// render as "?".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "?"
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
