package recommend

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/domain/history"
)

// HistorySource reads retained listening history. Satisfied by
// historystore.Store.
type HistorySource interface {
	Recent(guildID string, n int) []history.Entry
	All() []history.Entry
}

// EngineConfig tunes the history engine.
type EngineConfig struct {
	// HalfLife is the recency decay: a play this old counts half as
	// much as one right now.
	HalfLife time.Duration
	// MaxAge drops plays older than this entirely.
	MaxAge time.Duration
	// SparseThreshold switches to global history when the guild has
	// fewer retained entries than this.
	SparseThreshold int
	// MaxDuration skips candidates whose recorded play was longer than
	// this. Zero disables the check.
	MaxDuration time.Duration
}

// Engine scores history entries by recency-weighted frequency: each play
// of a title contributes 0.5^(age/halfLife), so a title played often and
// recently outranks both one-hit wonders and stale favorites.
type Engine struct {
	store HistorySource
	cfg   EngineConfig
	now   func() time.Time
}

// NewEngine creates a history-based recommendation engine.
func NewEngine(store HistorySource, cfg EngineConfig) *Engine {
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = 72 * time.Hour
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	return &Engine{store: store, cfg: cfg, now: time.Now}
}

type scoredTitle struct {
	title      string
	url        string
	score      float64
	lastPlayed time.Time
}

// Candidates implements Provider.
func (e *Engine) Candidates(_ context.Context, guildID string, count int, exclude []string) ([]session.Candidate, error) {
	if count <= 0 {
		return nil, nil
	}

	entries := e.store.Recent(guildID, 0)
	if len(entries) < e.cfg.SparseThreshold {
		entries = e.store.All()
	}
	if len(entries) == 0 {
		return nil, errors.New("no listening history available")
	}

	excluded := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		excluded[strings.ToLower(t)] = true
	}

	now := e.now()
	stats := make(map[string]*scoredTitle)
	for _, en := range entries {
		key := strings.ToLower(en.Title)
		if key == "" || excluded[key] {
			continue
		}
		age := now.Sub(en.PlayedAt)
		if age < 0 {
			age = 0
		}
		if age > e.cfg.MaxAge {
			continue
		}
		if e.cfg.MaxDuration > 0 && en.Duration > e.cfg.MaxDuration {
			continue
		}

		weight := math.Pow(0.5, age.Hours()/e.cfg.HalfLife.Hours())
		st, ok := stats[key]
		if !ok {
			st = &scoredTitle{title: en.Title, url: en.URL}
			stats[key] = st
		}
		st.score += weight
		if en.PlayedAt.After(st.lastPlayed) {
			st.lastPlayed = en.PlayedAt
			st.url = en.URL
		}
	}

	if len(stats) == 0 {
		return nil, errors.New("no eligible candidates in history")
	}

	scored := make([]scoredTitle, 0, len(stats))
	for _, st := range stats {
		scored = append(scored, *st)
	}
	// Ties break toward the most recent play, then title for
	// determinism.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if !scored[i].lastPlayed.Equal(scored[j].lastPlayed) {
			return scored[i].lastPlayed.After(scored[j].lastPlayed)
		}
		return scored[i].title < scored[j].title
	})

	if count > len(scored) {
		count = len(scored)
	}
	out := make([]session.Candidate, count)
	for i := 0; i < count; i++ {
		out[i] = session.Candidate{Title: scored[i].title, URL: scored[i].url}
	}
	return out, nil
}

// Name implements Provider.
func (e *Engine) Name() string {
	return "history"
}
