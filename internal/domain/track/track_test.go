package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "unknown duration",
			duration: 0,
			expected: "?",
		},
		{
			name:     "negative treated as unknown",
			duration: -time.Second,
			expected: "?",
		},
		{
			name:     "under a minute",
			duration: 42 * time.Second,
			expected: "0:42",
		},
		{
			name:     "minutes and seconds",
			duration: 3*time.Minute + 7*time.Second,
			expected: "3:07",
		},
		{
			name:     "exactly one hour",
			duration: time.Hour,
			expected: "1:00:00",
		},
		{
			name:     "hours with padded fields",
			duration: 2*time.Hour + 4*time.Minute + 9*time.Second,
			expected: "2:04:09",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.duration))
		})
	}
}

func TestTrack_ResolutionLifecycle(t *testing.T) {
	tr := New("some song", "https://youtube.com/watch?v=abc", SourceYouTube, Requester{ID: "1", Name: "alice"})

	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, ResolutionPending, tr.Resolution)
	assert.False(t, tr.Resolved())

	tr.MarkResolved("https://cdn.example/stream", 3*time.Minute, "Some Song (Official)", "https://img.example/t.jpg")
	assert.True(t, tr.Resolved())
	assert.Equal(t, "Some Song (Official)", tr.Title)
	assert.Equal(t, 3*time.Minute, tr.Duration)

	tr.MarkFailed()
	assert.False(t, tr.Resolved())
	assert.Equal(t, ResolutionFailed, tr.Resolution)
	assert.Empty(t, tr.StreamURL)
}

func TestTrack_MarkResolvedKeepsKnownMetadata(t *testing.T) {
	tr := New("known title", "https://youtube.com/watch?v=xyz", SourceSearch, Requester{ID: "2", Name: "bob"})
	tr.Duration = 2 * time.Minute

	tr.MarkResolved("https://cdn.example/s", 0, "", "")

	assert.Equal(t, "known title", tr.Title)
	assert.Equal(t, 2*time.Minute, tr.Duration)
	assert.True(t, tr.Resolved())
}

func TestNew_DistinctIdentityPerEnqueue(t *testing.T) {
	a := New("same", "https://youtube.com/watch?v=same", SourceYouTube, Requester{ID: "1"})
	b := New("same", "https://youtube.com/watch?v=same", SourceYouTube, Requester{ID: "1"})
	assert.NotEqual(t, a.ID, b.ID)
}
