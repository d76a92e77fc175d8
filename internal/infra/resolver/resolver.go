// Package resolver turns user input into playable tracks. Queries are
// classified by shape: YouTube URLs resolve directly, Spotify URLs
// expand through the Spotify API, and bare text becomes a lazy search
// track whose video is found when it is about to play.
package resolver

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	youtube "github.com/kkdai/youtube/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

// ErrNotFound means the query matched nothing playable. Not transient:
// retrying the same query will not help.
var ErrNotFound = errors.New("no playable result found")

// SpotifyExpander expands Spotify links into pending tracks. Optional;
// nil disables Spotify input.
type SpotifyExpander interface {
	GetTrack(ctx context.Context, input string, requester track.Requester) (track.Track, error)
	GetPlaylistTracks(ctx context.Context, playlistURL string, requester track.Requester) ([]track.Track, error)
	GetAlbumTracks(ctx context.Context, albumURL string, requester track.Requester) ([]track.Track, error)
}

// Resolver resolves queries against YouTube and optionally Spotify.
type Resolver struct {
	yt      *youtube.Client
	search  *Searcher
	spotify SpotifyExpander
}

// New creates a resolver. spotify may be nil.
func New(yt *youtube.Client, search *Searcher, spotify SpotifyExpander) *Resolver {
	if yt == nil {
		yt = &youtube.Client{}
	}
	if search == nil {
		search = NewSearcher()
	}
	return &Resolver{yt: yt, search: search, spotify: spotify}
}

// Resolve expands a query into one or more pending tracks.
func (r *Resolver) Resolve(ctx context.Context, query string, requester track.Requester) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Wrap(ErrNotFound, "empty query")
	}

	switch {
	case isSpotifyURL(query):
		return r.resolveSpotify(ctx, query, requester)
	case isYouTubePlaylistURL(query):
		return r.resolveYouTubePlaylist(ctx, query, requester)
	case isYouTubeVideoURL(query):
		t, err := r.resolveYouTubeVideo(ctx, query, requester)
		if err != nil {
			return nil, err
		}
		return []track.Track{t}, nil
	default:
		// Search text: find the video lazily when the track is about to
		// play, so queueing stays fast.
		return []track.Track{track.New(query, "", track.SourceSearch, requester)}, nil
	}
}

// ResolveStream fills the playable stream URL for a single track.
func (r *Resolver) ResolveStream(ctx context.Context, t track.Track) (track.Track, error) {
	if t.Resolved() {
		return t, nil
	}

	videoURL := t.URL
	if !isYouTubeVideoURL(videoURL) {
		// Search tracks, Spotify tracks, and autoplay candidates carry a
		// title, not a video URL.
		found, err := r.search.FirstVideoURL(ctx, t.Title)
		if err != nil {
			return t, err
		}
		videoURL = found
		t.URL = videoURL
	}

	video, err := r.yt.GetVideoContext(ctx, videoURL)
	if err != nil {
		return t, errors.Wrapf(err, "failed to load video: url=%s", videoURL)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return t, errors.Wrapf(ErrNotFound, "no audio formats: url=%s", videoURL)
	}

	streamURL, err := r.yt.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return t, errors.Wrapf(err, "failed to get stream URL: url=%s", videoURL)
	}

	// Keep the Spotify "Artist - Title" label; YouTube titles are noisier.
	title := video.Title
	if t.Source == track.SourceSpotify {
		title = ""
	}
	t.MarkResolved(streamURL, video.Duration, title, bestThumbnail(video.Thumbnails))
	zlog.Debug().Msgf("resolver: stream resolved: title=%s duration=%s", t.Title, t.Duration)
	return t, nil
}

func (r *Resolver) resolveSpotify(ctx context.Context, query string, requester track.Requester) ([]track.Track, error) {
	if r.spotify == nil {
		return nil, errors.Wrap(ErrNotFound, "spotify support is not configured")
	}

	switch {
	case strings.Contains(query, "/playlist/") || strings.HasPrefix(query, "spotify:playlist:"):
		tracks, err := r.spotify.GetPlaylistTracks(ctx, query, requester)
		if err != nil {
			return nil, err
		}
		if len(tracks) == 0 {
			return nil, errors.Wrap(ErrNotFound, "playlist is empty")
		}
		return tracks, nil
	case strings.Contains(query, "/album/") || strings.HasPrefix(query, "spotify:album:"):
		tracks, err := r.spotify.GetAlbumTracks(ctx, query, requester)
		if err != nil {
			return nil, err
		}
		if len(tracks) == 0 {
			return nil, errors.Wrap(ErrNotFound, "album is empty")
		}
		return tracks, nil
	default:
		t, err := r.spotify.GetTrack(ctx, query, requester)
		if err != nil {
			return nil, err
		}
		return []track.Track{t}, nil
	}
}

func (r *Resolver) resolveYouTubePlaylist(ctx context.Context, query string, requester track.Requester) ([]track.Track, error) {
	playlist, err := r.yt.GetPlaylistContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load playlist")
	}
	if len(playlist.Videos) == 0 {
		return nil, errors.Wrap(ErrNotFound, "playlist is empty")
	}

	tracks := make([]track.Track, 0, len(playlist.Videos))
	for _, v := range playlist.Videos {
		t := track.New(v.Title, watchURL(v.ID), track.SourceYouTube, requester)
		t.Duration = v.Duration
		t.Thumbnail = bestThumbnail(v.Thumbnails)
		tracks = append(tracks, t)
	}
	zlog.Info().Msgf("resolver: playlist expanded: title=%s tracks=%d", playlist.Title, len(tracks))
	return tracks, nil
}

func (r *Resolver) resolveYouTubeVideo(ctx context.Context, query string, requester track.Requester) (track.Track, error) {
	video, err := r.yt.GetVideoContext(ctx, query)
	if err != nil {
		return track.Track{}, errors.Wrapf(err, "failed to load video: url=%s", query)
	}

	t := track.New(video.Title, watchURL(video.ID), track.SourceYouTube, requester)
	t.Duration = video.Duration
	t.Thumbnail = bestThumbnail(video.Thumbnails)
	return t, nil
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func bestThumbnail(thumbs []youtube.Thumbnail) string {
	best := ""
	var bestWidth uint
	for _, th := range thumbs {
		if th.URL != "" && th.Width >= bestWidth {
			best = th.URL
			bestWidth = th.Width
		}
	}
	return best
}

// IsTransient reports whether a resolution error is worth retrying
// later. Not-found errors are final; network errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "connection")
}
