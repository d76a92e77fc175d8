package session

import (
	"context"
	"time"

	"github.com/tunebox-bot/tunebox/internal/domain/history"
	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

// Resolver turns user input into tracks and lazily fills stream URLs.
type Resolver interface {
	// Resolve expands a query (URL, playlist URL, or search text) into
	// one or more tracks. At least the first track of a multi-track
	// result carries display metadata.
	Resolve(ctx context.Context, query string, requester track.Requester) ([]track.Track, error)
	// ResolveStream fills the playable stream URL for a single track.
	ResolveStream(ctx context.Context, t track.Track) (track.Track, error)
}

// PipelineHandle controls one running audio stream.
type PipelineHandle interface {
	Pause()
	Resume()
	SetVolume(v float64)
	// Stop tears the stream down; Done then delivers OutcomeStopped.
	Stop()
	// Done delivers exactly one outcome when the stream ends.
	Done() <-chan Outcome
}

// PipelineStarter launches audio streams into a guild's voice connection.
type PipelineStarter interface {
	Start(ctx context.Context, guildID string, t track.Track, volume float64) (PipelineHandle, error)
}

// VoiceManager joins and leaves guild voice channels.
type VoiceManager interface {
	// Join connects (or moves) the guild's voice connection. Idempotent
	// when already connected to channelID.
	Join(guildID, channelID string) error
	Leave(guildID string) error
	// Connected reports whether the guild has a live voice connection.
	Connected(guildID string) bool
}

// Notifier is told whenever a session's observable state changed, so the
// live player message can be re-rendered.
type Notifier interface {
	SessionChanged(snap Snapshot)
	// SessionDestroyed is called after the session is gone.
	SessionDestroyed(guildID string)
}

// Recorder appends completed plays to the listening history.
type Recorder interface {
	Record(e history.Entry) error
}

// Recommender supplies candidates for autoplay and the recommend
// command. Candidates are titles with an optional source URL; the
// session re-resolves them before playback.
type Recommender interface {
	// NextAutoplay picks one candidate, excluding the given titles.
	NextAutoplay(guildID string, exclude []string) (Candidate, error)
	// Recommend returns up to k distinct candidates.
	Recommend(guildID string, k int, exclude []string) ([]Candidate, error)
}

// Candidate is one recommendation.
type Candidate struct {
	Title string
	URL   string
}

// Config carries the tunables a session needs.
type Config struct {
	DefaultVolume float64
	MinVolume     float64
	MaxVolume     float64
	IdleTimeout   time.Duration
	AloneTimeout  time.Duration
	AloneGrace    time.Duration
	AutoplayCap   int
	RepeatDefault bool
}

// Deps bundles the session collaborators.
type Deps struct {
	Resolver    Resolver
	Pipeline    PipelineStarter
	Voice       VoiceManager
	Notifier    Notifier
	Recorder    Recorder
	Recommender Recommender
}

// Snapshot is an immutable view of a session for rendering and the
// dashboard. Building it is the only way to observe session state.
type Snapshot struct {
	GuildID   string
	Status    Status
	Repeat    bool
	Autoplay  bool
	Volume    float64
	Tracks    []track.Track
	Cursor    int
	UpdatedAt time.Time
}

// Current returns the cursor track of the snapshot, if any.
func (s Snapshot) Current() (track.Track, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Tracks) {
		return track.Track{}, false
	}
	return s.Tracks[s.Cursor], true
}

// HasNext reports whether a queued track follows the cursor.
func (s Snapshot) HasNext() bool {
	return s.Cursor+1 < len(s.Tracks)
}
