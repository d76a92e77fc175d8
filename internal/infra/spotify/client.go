// Package spotify expands Spotify links into track metadata. Spotify has
// no public audio streams, so tracks come back pending: the player later
// searches YouTube with "artist - title".
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

// Client is a Spotify API client using the client-credentials flow. Only
// public catalog data is read, so no user authorization is needed.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := creds.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	client := spotify.New(httpClient)

	market := cfg.Market
	if market == "" {
		market = "US"
	}

	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// GetTrack retrieves track metadata by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, input string, requester track.Requester) (track.Track, error) {
	id := extractID(input, "track")

	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to get track")
	}

	return c.convertTrack(result.SimpleTrack, result.Album, requester), nil
}

// GetPlaylistTracks retrieves all tracks from a playlist URL.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistURL string, requester track.Requester) ([]track.Track, error) {
	playlistID := extractID(playlistURL, "playlist")
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var tracks []track.Track
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Episodes have no Track
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				t := item.Track.Track
				tracks = append(tracks, c.convertTrack(t.SimpleTrack, t.Album, requester))
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// GetAlbumTracks retrieves all tracks from an album URL.
func (c *Client) GetAlbumTracks(ctx context.Context, albumURL string, requester track.Requester) ([]track.Track, error) {
	albumID := extractID(albumURL, "album")
	if albumID == "" {
		return nil, errors.New("invalid album URL")
	}

	var album *spotify.FullAlbum
	err := c.retry(func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(albumID), spotify.Market(c.market))
		if err != nil {
			return err
		}
		album = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album")
	}

	tracks := make([]track.Track, 0, len(album.Tracks.Tracks))
	for _, t := range album.Tracks.Tracks {
		tracks = append(tracks, c.convertTrack(t, album.SimpleAlbum, requester))
	}
	return tracks, nil
}

// convertTrack builds a pending domain track titled "Artist - Title".
func (c *Client) convertTrack(t spotify.SimpleTrack, album spotify.SimpleAlbum, requester track.Requester) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	title := t.Name
	if len(artists) > 0 {
		title = fmt.Sprintf("%s - %s", strings.Join(artists, ", "), t.Name)
	}

	out := track.New(title, trackURL(string(t.ID)), track.SourceSpotify, requester)
	out.Duration = time.Duration(t.Duration) * time.Millisecond
	if len(album.Images) > 0 {
		out.Thumbnail = album.Images[0].URL
	}
	return out
}

func trackURL(id string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", id)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractID extracts the resource ID from a Spotify URL or URI.
// kind is "track", "playlist", or "album".
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	// URI format: spotify:<kind>:ID
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	// URL format: https://open.spotify.com/<kind>/ID or
	// https://open.spotify.com/intl-XX/<kind>/ID
	marker := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, marker) {
		parts := strings.Split(input, marker)
		if len(parts) >= 2 {
			// Drop query parameters and trailing slashes
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already an ID
	return input
}
