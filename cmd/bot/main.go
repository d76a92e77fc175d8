// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/api/dashboard"
	"github.com/tunebox-bot/tunebox/internal/app/command"
	"github.com/tunebox-bot/tunebox/internal/app/recommend"
	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/app/stats"
	"github.com/tunebox-bot/tunebox/internal/app/ui"
	"github.com/tunebox-bot/tunebox/internal/discord"
	"github.com/tunebox-bot/tunebox/internal/domain/history"
	"github.com/tunebox-bot/tunebox/internal/infra/config"
	"github.com/tunebox-bot/tunebox/internal/infra/historystore"
	"github.com/tunebox-bot/tunebox/internal/infra/logger"
	"github.com/tunebox-bot/tunebox/internal/infra/pipeline"
	"github.com/tunebox-bot/tunebox/internal/infra/resolver"
	"github.com/tunebox-bot/tunebox/internal/infra/spotify"
)

var (
	app        = kingpin.New("tunebox", "Tunebox Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		os.Exit(1)
	}
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Spotify is optional; without credentials its URLs are rejected.
	var spotifyClient *spotify.Client
	if cfg.SpotifyEnabled() {
		var err error
		spotifyClient, err = spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
	} else {
		zlog.Info().Msg("Spotify credentials not configured, Spotify links disabled")
	}

	historyStore, err := historystore.New(cfg.History.Dir, cfg.History.MaxEntries)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}

	recommender, err := recommend.NewChainFromConfig(cfg, historyStore)
	if err != nil {
		return fmt.Errorf("failed to build recommendation chain: %w", err)
	}

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}

	renderer := ui.NewRenderer(cfg.UI.QueuePageSize)
	voice := discord.NewVoiceGateway(dg)
	messenger := discord.NewMessenger(dg, renderer)

	var spotifyExpander resolver.SpotifyExpander
	if spotifyClient != nil {
		spotifyExpander = spotifyClient
	}
	trackResolver := resolver.New(nil, nil, spotifyExpander)

	collector := stats.NewCollector()

	registry := session.NewRegistry(session.Config{
		DefaultVolume: cfg.Audio.DefaultVolume,
		MinVolume:     cfg.Audio.MinVolume,
		MaxVolume:     cfg.Audio.MaxVolume,
		IdleTimeout:   cfg.IdleTimeout(),
		AloneTimeout:  cfg.AloneTimeout(),
		AloneGrace:    cfg.AloneGrace(),
		AutoplayCap:   cfg.Autoplay.ConsecutiveCap,
	}, session.Deps{
		Resolver:    trackResolver,
		Pipeline:    pipeline.New(voice, cfg.Audio.FFmpegPath),
		Voice:       voice,
		Notifier:    messenger,
		Recorder:    &playRecorder{store: historyStore, stats: collector},
		Recommender: recommender,
	})

	dispatcher := command.NewDispatcher(registry,
		command.NewUserLimiter(cfg.RateLimit.CommandsPerMinute, cfg.RateLimit.Burst),
		collector,
	)

	bot := discord.NewBot(dg, cfg.Discord.Prefix, dispatcher, registry, renderer, messenger, voice)
	if err := bot.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	api := dashboard.NewServer(dashboard.Config{
		Addr:       cfg.Dashboard.Addr,
		AdminToken: cfg.Dashboard.AdminToken,
	}, registry, collector, dispatcher)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := api.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("dashboard server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry.DestroyAll("shutting down")
	if err := bot.Close(); err != nil {
		zlog.Error().Msgf("Failed to close Discord session: %v", err)
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown dashboard server: %v", err)
	}

	zlog.Info().Msg("Bot stopped")
	return nil
}

// playRecorder fans a playback record out to the history store and the
// dashboard counters.
type playRecorder struct {
	store *historystore.Store
	stats *stats.Collector
}

func (r *playRecorder) Record(e history.Entry) error {
	r.stats.RecordPlay(e.GuildID, e.Title)
	return r.store.Record(e)
}
