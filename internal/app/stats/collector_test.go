package stats

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordPlay(t *testing.T) {
	c := NewCollector()
	c.RecordPlay("g1", "song-a")
	c.RecordPlay("g1", "song-a")
	c.RecordPlay("g2", "song-b")

	s := c.Snapshot(10)
	assert.Equal(t, 3, s.TotalPlays)
	assert.Equal(t, 2, s.PlaysPerGuild["g1"])
	assert.Equal(t, 1, s.PlaysPerGuild["g2"])
	require.NotEmpty(t, s.TopTitles)
	assert.Equal(t, TitleCount{Title: "song-a", Count: 2}, s.TopTitles[0])
	assert.Equal(t, "song-b", s.RecentPlays[0].Title, "recent plays are newest first")
}

func TestCollector_TopTitlesLimitAndOrder(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 5; i++ {
		c.RecordPlay("g1", fmt.Sprintf("song-%d", i))
	}
	c.RecordPlay("g1", "song-3")

	s := c.Snapshot(3)
	require.Len(t, s.TopTitles, 3)
	assert.Equal(t, "song-3", s.TopTitles[0].Title)
	// equal counts order by title for deterministic output
	assert.Equal(t, "song-0", s.TopTitles[1].Title)
	assert.Equal(t, "song-1", s.TopTitles[2].Title)
}

func TestCollector_RecentPlaysCapped(t *testing.T) {
	c := NewCollector()
	for i := 0; i < recentPlaysKept+10; i++ {
		c.RecordPlay("g1", fmt.Sprintf("song-%d", i))
	}
	s := c.Snapshot(10)
	assert.Len(t, s.RecentPlays, recentPlaysKept)
	assert.Equal(t, fmt.Sprintf("song-%d", recentPlaysKept+9), s.RecentPlays[0].Title)
}

func TestCollector_Commands(t *testing.T) {
	c := NewCollector()
	c.RecordCommand("play")
	c.RecordCommand("play")
	c.RecordCommand("skip")

	s := c.Snapshot(10)
	assert.Equal(t, 2, s.CommandCounts["play"])
	assert.Equal(t, 1, s.CommandCounts["skip"])
}

func TestCollector_SnapshotIsACopy(t *testing.T) {
	c := NewCollector()
	c.RecordPlay("g1", "song-a")

	s := c.Snapshot(10)
	s.PlaysPerGuild["g1"] = 99
	s.CommandCounts["hax"] = 1

	fresh := c.Snapshot(10)
	assert.Equal(t, 1, fresh.PlaysPerGuild["g1"])
	assert.Zero(t, fresh.CommandCounts["hax"])
}

func TestCollector_ConcurrentUse(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordPlay("g1", "song")
				c.RecordCommand("play")
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot(10)
	assert.Equal(t, 800, s.TotalPlays)
	assert.Equal(t, 800, s.CommandCounts["play"])
}
