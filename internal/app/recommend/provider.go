// Package recommend provides recommendation candidates for autoplay and
// the recommend command: a listening-history engine first, with optional
// external providers as fallback.
package recommend

import (
	"context"

	"github.com/tunebox-bot/tunebox/internal/app/session"
)

// Provider is one source of recommendation candidates.
type Provider interface {
	// Candidates returns up to count candidates for the guild, skipping
	// excluded titles.
	Candidates(ctx context.Context, guildID string, count int, exclude []string) ([]session.Candidate, error)

	// Name returns the provider name (used in config).
	Name() string
}
