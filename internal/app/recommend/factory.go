package recommend

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/infra/config"
)

// NewChainFromConfig creates a provider chain from configuration. With
// no providers configured the chain falls back to the listening-history
// engine alone.
func NewChainFromConfig(cfg *config.Config, store HistorySource) (*Chain, error) {
	engineCfg := EngineConfig{
		HalfLife:        cfg.AutoplayHalfLife(),
		MaxDuration:     cfg.AutoplayMaxDuration(),
		SparseThreshold: cfg.Autoplay.SparseThreshold,
	}

	if len(cfg.Providers) == 0 {
		return NewChain([]ProviderWithMetadata{
			{Provider: NewEngine(store, engineCfg), DisplayName: "Listening history"},
		}), nil
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating recommendation provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "history":
			provider = NewEngine(store, engineCfg)

		case "lastfm":
			provider, err = NewLastFmProvider(store, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered recommendation provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(providers), nil
}
