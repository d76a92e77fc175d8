// Package history provides the listening-history entry shared by the
// store and the recommendation engine.
package history

import "time"

// Entry records one completed (or substantially played) track.
type Entry struct {
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	GuildID     string        `json:"guild_id"`
	RequesterID string        `json:"requester_id"`
	Duration    time.Duration `json:"duration"`
	PlayedAt    time.Time     `json:"played_at"`
}
