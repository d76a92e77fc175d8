package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebox-bot/tunebox/internal/domain/history"
)

type fakeHistory struct {
	perGuild map[string][]history.Entry
}

func (f *fakeHistory) Recent(guildID string, n int) []history.Entry {
	entries := f.perGuild[guildID]
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func (f *fakeHistory) All() []history.Entry {
	var out []history.Entry
	for _, entries := range f.perGuild {
		out = append(out, entries...)
	}
	return out
}

func play(title string, playedAt time.Time) history.Entry {
	return history.Entry{
		Title:    title,
		URL:      "https://youtube.com/watch?v=" + title,
		GuildID:  "g1",
		Duration: 3 * time.Minute,
		PlayedAt: playedAt,
	}
}

func testEngine(store HistorySource) *Engine {
	e := NewEngine(store, EngineConfig{
		HalfLife:        72 * time.Hour,
		MaxAge:          30 * 24 * time.Hour,
		SparseThreshold: 5,
		MaxDuration:     15 * time.Minute,
	})
	return e
}

func TestEngine_FrequencyBeatsSinglePlay(t *testing.T) {
	now := time.Now()
	store := &fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {
			play("often", now.Add(-time.Hour)),
			play("often", now.Add(-2*time.Hour)),
			play("often", now.Add(-3*time.Hour)),
			play("once", now.Add(-time.Hour)),
			play("filler", now.Add(-4*time.Hour)),
		},
	}}
	e := testEngine(store)

	got, err := e.Candidates(context.Background(), "g1", 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "often", got[0].Title)
}

func TestEngine_RecencyDecay(t *testing.T) {
	now := time.Now()
	// three stale plays decay to less than one fresh play:
	// 3 * 0.5^(10d/72h) < 1 * 0.5^(1h/72h)
	store := &fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {
			play("stale", now.Add(-10*24*time.Hour)),
			play("stale", now.Add(-10*24*time.Hour)),
			play("stale", now.Add(-10*24*time.Hour)),
			play("fresh", now.Add(-time.Hour)),
			play("filler", now.Add(-20*24*time.Hour)),
		},
	}}
	e := testEngine(store)

	got, err := e.Candidates(context.Background(), "g1", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got[0].Title)
}

func TestEngine_TieBreaksByMostRecent(t *testing.T) {
	now := time.Now()
	e := NewEngine(&fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {
			play("newer", now.Add(-time.Hour)),
			play("older", now.Add(-2*time.Hour)),
			play("oldest", now.Add(-3*time.Hour)),
			play("padding-a", now.Add(-4*time.Hour)),
			play("padding-b", now.Add(-5*time.Hour)),
		},
	}}, EngineConfig{
		// a huge half-life makes all single plays score equal
		HalfLife:        1000000 * time.Hour,
		SparseThreshold: 1,
	})

	got, err := e.Candidates(context.Background(), "g1", 3, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "newer", got[0].Title)
	assert.Equal(t, "older", got[1].Title)
	assert.Equal(t, "oldest", got[2].Title)
}

func TestEngine_ExcludesQueuedTitles(t *testing.T) {
	now := time.Now()
	store := &fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {
			play("queued", now.Add(-time.Hour)),
			play("queued", now.Add(-2*time.Hour)),
			play("free", now.Add(-3*time.Hour)),
			play("free-2", now.Add(-4*time.Hour)),
			play("free-3", now.Add(-5*time.Hour)),
		},
	}}
	e := testEngine(store)

	got, err := e.Candidates(context.Background(), "g1", 5, []string{"Queued"})
	require.NoError(t, err)
	for _, c := range got {
		assert.NotEqual(t, "queued", c.Title, "excluded title must not appear")
	}
}

func TestEngine_SparseGuildFallsBackToGlobal(t *testing.T) {
	now := time.Now()
	store := &fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {play("local", now.Add(-time.Hour))},
		"g2": {
			play("global-hit", now.Add(-time.Hour)),
			play("global-hit", now.Add(-2*time.Hour)),
			play("other", now.Add(-3*time.Hour)),
		},
	}}
	e := testEngine(store)

	got, err := e.Candidates(context.Background(), "g1", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "global-hit", got[0].Title, "sparse guild history uses the global pool")
}

func TestEngine_SkipsOverlongTracks(t *testing.T) {
	now := time.Now()
	long := play("marathon", now.Add(-time.Hour))
	long.Duration = time.Hour
	store := &fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {
			long,
			play("normal", now.Add(-2*time.Hour)),
			play("pad-1", now.Add(-3*time.Hour)),
			play("pad-2", now.Add(-4*time.Hour)),
			play("pad-3", now.Add(-5*time.Hour)),
		},
	}}
	e := testEngine(store)

	got, err := e.Candidates(context.Background(), "g1", 5, nil)
	require.NoError(t, err)
	for _, c := range got {
		assert.NotEqual(t, "marathon", c.Title)
	}
}

func TestEngine_SkipsEntriesPastMaxAge(t *testing.T) {
	now := time.Now()
	store := &fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {
			play("ancient", now.Add(-60*24*time.Hour)),
			play("recent", now.Add(-time.Hour)),
			play("pad-1", now.Add(-2*time.Hour)),
			play("pad-2", now.Add(-3*time.Hour)),
			play("pad-3", now.Add(-4*time.Hour)),
		},
	}}
	e := testEngine(store)

	got, err := e.Candidates(context.Background(), "g1", 5, nil)
	require.NoError(t, err)
	for _, c := range got {
		assert.NotEqual(t, "ancient", c.Title)
	}
}

func TestEngine_EmptyHistory(t *testing.T) {
	e := testEngine(&fakeHistory{perGuild: map[string][]history.Entry{}})

	_, err := e.Candidates(context.Background(), "g1", 1, nil)
	assert.Error(t, err, "empty history must error so autoplay can self-disable")
}

func TestEngine_AllCandidatesExcluded(t *testing.T) {
	now := time.Now()
	store := &fakeHistory{perGuild: map[string][]history.Entry{
		"g1": {
			play("a", now), play("b", now), play("c", now),
			play("d", now), play("e", now),
		},
	}}
	e := testEngine(store)

	_, err := e.Candidates(context.Background(), "g1", 1, []string{"a", "b", "c", "d", "e"})
	assert.Error(t, err)
}
