// Package stats collects process-wide playback and command counters for
// the dashboard.
package stats

import (
	"sort"
	"sync"
	"time"
)

const recentPlaysKept = 25

// Play is one recorded playback start.
type Play struct {
	GuildID  string    `json:"guild_id"`
	Title    string    `json:"title"`
	PlayedAt time.Time `json:"played_at"`
}

// TitleCount pairs a title with its play count.
type TitleCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// Snapshot is a point-in-time copy of the collected counters.
type Snapshot struct {
	StartedAt     time.Time      `json:"started_at"`
	TotalPlays    int            `json:"total_plays"`
	PlaysPerGuild map[string]int `json:"plays_per_guild"`
	TopTitles     []TitleCount   `json:"top_titles"`
	CommandCounts map[string]int `json:"command_counts"`
	RecentPlays   []Play         `json:"recent_plays"`
}

// Collector accumulates counters. Safe for concurrent use.
type Collector struct {
	mu            sync.Mutex
	startedAt     time.Time
	totalPlays    int
	playsPerGuild map[string]int
	titleCounts   map[string]int
	commandCounts map[string]int
	recentPlays   []Play
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		startedAt:     time.Now(),
		playsPerGuild: make(map[string]int),
		titleCounts:   make(map[string]int),
		commandCounts: make(map[string]int),
	}
}

// RecordPlay counts one playback start.
func (c *Collector) RecordPlay(guildID, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalPlays++
	c.playsPerGuild[guildID]++
	c.titleCounts[title]++
	c.recentPlays = append([]Play{{GuildID: guildID, Title: title, PlayedAt: time.Now()}}, c.recentPlays...)
	if len(c.recentPlays) > recentPlaysKept {
		c.recentPlays = c.recentPlays[:recentPlaysKept]
	}
}

// RecordCommand counts one executed command.
func (c *Collector) RecordCommand(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandCounts[name]++
}

// Snapshot returns a copy of the counters. topN limits the top-titles
// list; <= 0 means 10.
func (c *Collector) Snapshot(topN int) Snapshot {
	if topN <= 0 {
		topN = 10
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	perGuild := make(map[string]int, len(c.playsPerGuild))
	for k, v := range c.playsPerGuild {
		perGuild[k] = v
	}
	commands := make(map[string]int, len(c.commandCounts))
	for k, v := range c.commandCounts {
		commands[k] = v
	}
	recent := make([]Play, len(c.recentPlays))
	copy(recent, c.recentPlays)

	top := make([]TitleCount, 0, len(c.titleCounts))
	for title, count := range c.titleCounts {
		top = append(top, TitleCount{Title: title, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Title < top[j].Title
	})
	if len(top) > topN {
		top = top[:topN]
	}

	return Snapshot{
		StartedAt:     c.startedAt,
		TotalPlays:    c.totalPlays,
		PlaysPerGuild: perGuild,
		TopTitles:     top,
		CommandCounts: commands,
		RecentPlays:   recent,
	}
}
