package recommend

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/infra/lastfm"
)

// LastFmClient defines the Last.fm operations the provider needs.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

// LastFmProviderConfig holds the provider settings.
type LastFmProviderConfig struct {
	APIKey         string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SeedTrackCount int    `yaml:"seed_track_count" mapstructure:"seed_track_count" default:"3" validate:"gte=1"`
	SimilarLimit   int    `yaml:"similar_limit" mapstructure:"similar_limit" default:"10" validate:"gte=1"`
}

// LastFmProvider suggests tracks similar to recently played history
// entries, falling back to the global charts when the history yields no
// usable seeds. Candidates carry no URL; the resolver searches them.
type LastFmProvider struct {
	lastfm  LastFmClient
	history HistorySource
	config  *LastFmProviderConfig
}

// NewLastFmProvider creates a LastFmProvider from a settings map.
func NewLastFmProvider(historySource HistorySource, settings map[string]any) (*LastFmProvider, error) {
	if historySource == nil {
		return nil, errors.New("history source is required")
	}
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return &LastFmProvider{
		lastfm:  client,
		history: historySource,
		config:  &config,
	}, nil
}

// Candidates implements Provider.
func (p *LastFmProvider) Candidates(ctx context.Context, guildID string, count int, exclude []string) ([]session.Candidate, error) {
	if count <= 0 {
		return nil, nil
	}

	excluded := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		excluded[strings.ToLower(t)] = true
	}

	var candidates []session.Candidate
	for _, seed := range p.seeds(guildID) {
		similar, err := p.lastfm.GetSimilarTracks(ctx, seed.name, seed.artist, p.config.SimilarLimit)
		if err != nil {
			continue
		}
		for _, sim := range similar {
			title := fmt.Sprintf("%s - %s", sim.Artist, sim.Name)
			if excluded[strings.ToLower(title)] {
				continue
			}
			excluded[strings.ToLower(title)] = true
			candidates = append(candidates, session.Candidate{Title: title})
		}
	}

	if len(candidates) == 0 {
		chart, err := p.lastfm.GetChartTopTracks(ctx, count*2)
		if err != nil {
			return nil, errors.Wrap(err, "chart fallback failed")
		}
		for _, t := range chart {
			title := fmt.Sprintf("%s - %s", t.Artist, t.Name)
			if excluded[strings.ToLower(title)] {
				continue
			}
			excluded[strings.ToLower(title)] = true
			candidates = append(candidates, session.Candidate{Title: title})
		}
	}

	if len(candidates) == 0 {
		return nil, errors.New("no candidates from last.fm")
	}

	shuffleCandidates(candidates)
	if count < len(candidates) {
		candidates = candidates[:count]
	}
	return candidates, nil
}

// Name implements Provider.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

type seedTrack struct {
	artist string
	name   string
}

// seeds extracts "Artist - Title" pairs from recent history entries.
// Entries without that shape cannot seed a similarity lookup.
func (p *LastFmProvider) seeds(guildID string) []seedTrack {
	entries := p.history.Recent(guildID, p.config.SeedTrackCount*3)
	seeds := make([]seedTrack, 0, p.config.SeedTrackCount)
	for _, en := range entries {
		artist, name, ok := splitArtistTitle(en.Title)
		if !ok {
			continue
		}
		seeds = append(seeds, seedTrack{artist: artist, name: name})
		if len(seeds) >= p.config.SeedTrackCount {
			break
		}
	}
	return seeds
}

func splitArtistTitle(title string) (artist, name string, ok bool) {
	parts := strings.SplitN(title, " - ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	artist = strings.TrimSpace(parts[0])
	name = strings.TrimSpace(parts[1])
	if artist == "" || name == "" {
		return "", "", false
	}
	return artist, name, true
}

// shuffleCandidates randomizes candidate order so repeated calls do not
// always surface the same tracks.
func shuffleCandidates(cands []session.Candidate) {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(cands), func(i, j int) {
		cands[i], cands[j] = cands[j], cands[i]
	})
}
