package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSimilarTracks(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "track.getSimilar", r.URL.Query().Get("method"))
		assert.Equal(t, "test_artist", r.URL.Query().Get("artist"))
		assert.Equal(t, "test_track", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))

		response := `{
			"similartracks": {
				"track": [
					{"name": "Similar 1", "artist": {"name": "Artist 1"}},
					{"name": "Similar 2", "artist": {"name": "Artist 2"}}
				]
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key", BaseURL: server.URL + "/"})
	assert.NoError(t, err)

	ctx := context.Background()
	tracks, err := client.GetSimilarTracks(ctx, "test_track", "test_artist", 5)
	assert.NoError(t, err)
	assert.Len(t, tracks, 2)
	assert.Equal(t, "Similar 1", tracks[0].Name)
	assert.Equal(t, "Artist 1", tracks[0].Artist)

	// second lookup is served from the cache
	tracksCached, err := client.GetSimilarTracks(ctx, "test_track", "test_artist", 5)
	assert.NoError(t, err)
	assert.Equal(t, tracks, tracksCached)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestGetChartTopTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chart.getTopTracks", r.URL.Query().Get("method"))

		response := `{
			"tracks": {
				"track": [
					{"name": "Chart 1", "artist": {"name": "Artist 1"}},
					{"name": "Chart 2", "artist": {"name": "Artist 2"}}
				]
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key", BaseURL: server.URL + "/"})
	assert.NoError(t, err)

	tracks, err := client.GetChartTopTracks(context.Background(), 5)
	assert.NoError(t, err)
	assert.Len(t, tracks, 2)
	assert.Equal(t, "Chart 1", tracks[0].Name)
}

func TestGetSimilarTracks_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": 6, "message": "Track not found"}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key", BaseURL: server.URL + "/"})
	assert.NoError(t, err)

	_, err = client.GetSimilarTracks(context.Background(), "nope", "nobody", 5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Track not found")
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
