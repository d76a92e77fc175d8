package recommend

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/app/session"
)

const providerTimeout = 10 * time.Second

// ProviderWithMetadata wraps a provider with its display name.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries providers in order and merges their candidates. It
// implements session.Recommender.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{providers: providers}
}

// NextAutoplay returns one candidate for the autoplay loop.
func (c *Chain) NextAutoplay(guildID string, exclude []string) (session.Candidate, error) {
	cands, err := c.gather(guildID, 1, exclude)
	if err != nil {
		return session.Candidate{}, err
	}
	return cands[0], nil
}

// Recommend returns up to k distinct candidates.
func (c *Chain) Recommend(guildID string, k int, exclude []string) ([]session.Candidate, error) {
	return c.gather(guildID, k, exclude)
}

func (c *Chain) gather(guildID string, count int, exclude []string) ([]session.Candidate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
	defer cancel()

	var all []session.Candidate
	seen := make(map[string]bool)
	currentExclude := append([]string(nil), exclude...)

	for i, pm := range c.providers {
		zlog.Debug().Msgf("recommend: trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		cands, err := pm.Provider.Candidates(ctx, guildID, count-len(all), currentExclude)
		if err != nil {
			zlog.Debug().Msgf("recommend: provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		for _, cand := range cands {
			if seen[cand.Title] {
				continue
			}
			seen[cand.Title] = true
			all = append(all, cand)
			currentExclude = append(currentExclude, cand.Title)
		}

		if len(all) >= count {
			break
		}
	}

	if len(all) == 0 {
		return nil, errors.New("no provider returned candidates")
	}
	if len(all) > count {
		all = all[:count]
	}
	return all, nil
}
