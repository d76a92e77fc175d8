// Package discord connects the guild sessions to the Discord gateway:
// prefix commands, player buttons, voice connections, and the live
// player message.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/app/command"
	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/app/ui"
	"github.com/tunebox-bot/tunebox/internal/domain/queue"
)

const dispatchTimeout = 30 * time.Second

// Bot wires gateway events to the command dispatcher.
type Bot struct {
	dg         *discordgo.Session
	prefix     string
	dispatcher *command.Dispatcher
	registry   *session.Registry
	renderer   *ui.Renderer
	messenger  *Messenger
	voice      *VoiceGateway
}

// NewBot assembles the bot over a not-yet-open Discord session.
func NewBot(dg *discordgo.Session, prefix string, dispatcher *command.Dispatcher, registry *session.Registry, renderer *ui.Renderer, messenger *Messenger, voice *VoiceGateway) *Bot {
	return &Bot{
		dg:         dg,
		prefix:     prefix,
		dispatcher: dispatcher,
		registry:   registry,
		renderer:   renderer,
		messenger:  messenger,
		voice:      voice,
	}
}

// Start registers handlers and opens the gateway connection.
func (b *Bot) Start() error {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return errors.Wrap(err, "failed to open Discord session")
	}
	return nil
}

// Close tears down the gateway connection.
func (b *Bot) Close() error {
	return b.dg.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("discord: ready: user=%s guilds=%d", r.User.Username, len(r.Guilds))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	pc, ok := parseMessage(b.prefix, m.Content)
	if !ok {
		return
	}

	switch pc.name {
	case "queue", "q":
		b.replyQueue(s, m, pc)
		return
	case "join":
		channelID := b.userVoiceChannel(s, m.GuildID, m.Author.ID)
		if channelID == "" {
			b.reply(s, m.ChannelID, "⚠️ Join a voice channel first.")
			return
		}
		// The session owns the connection, so the idle and alone
		// timers apply even before anything plays.
		sess, _ := b.registry.GetOrCreate(m.GuildID)
		if err := sess.Join(channelID); err != nil {
			b.reply(s, m.ChannelID, errorText(err))
			return
		}
		b.messenger.BindChannel(m.GuildID, m.ChannelID)
		b.reply(s, m.ChannelID, "Joined your voice channel.")
		return
	}

	req, err := buildRequest(pc, m.GuildID, m.Author.ID, m.Author.Username, b.userVoiceChannel(s, m.GuildID, m.Author.ID))
	if err != nil {
		if errors.Is(err, command.ErrUnknownOp) {
			return // not for us
		}
		b.reply(s, m.ChannelID, errorText(err))
		return
	}
	if req.Op == command.OpAutoplay && len(pc.args) == 0 {
		// Bare toggle flips the current state.
		if sess, ok := b.registry.Get(m.GuildID); ok {
			req.Enable = !sess.Snapshot().Autoplay
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	res, err := b.dispatcher.Dispatch(ctx, req)
	if err != nil {
		b.reply(s, m.ChannelID, errorText(err))
		return
	}

	b.messenger.BindChannel(m.GuildID, m.ChannelID)
	if sess, ok := b.registry.Get(m.GuildID); ok {
		b.messenger.SessionChanged(sess.Snapshot())
	}

	if res.Message != "" {
		b.reply(s, m.ChannelID, res.Message)
	}
	if len(res.Candidates) > 0 {
		b.replyCandidates(s, m.ChannelID, res)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent || i.GuildID == "" {
		return
	}

	req, ok := b.buttonRequest(i)
	if !ok {
		return
	}

	// Acknowledge immediately; the player message is updated via the
	// session notifier.
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if _, err := b.dispatcher.Dispatch(ctx, req); err != nil && !session.IsValidation(err) {
		zlog.Warn().Err(err).Msgf("discord: button dispatch failed: guild=%s op=%s", i.GuildID, req.Op)
	}

	if sess, ok := b.registry.Get(i.GuildID); ok {
		b.messenger.SessionChanged(sess.Snapshot())
	}
}

// buttonRequest maps a component interaction to a dispatcher request.
func (b *Bot) buttonRequest(i *discordgo.InteractionCreate) (command.Request, bool) {
	user := i.Member.User
	req := command.Request{
		GuildID:  i.GuildID,
		UserID:   user.ID,
		UserName: user.Username,
	}

	var snap session.Snapshot
	if sess, ok := b.registry.Get(i.GuildID); ok {
		snap = sess.Snapshot()
	}

	switch i.MessageComponentData().CustomID {
	case buttonPrev:
		req.Op = command.OpJump
		req.Index = snap.Cursor // 1-based previous track
	case buttonPlayPause:
		if snap.Status == session.StatusPlaying {
			req.Op = command.OpPause
		} else {
			req.Op = command.OpResume
		}
	case buttonNext:
		req.Op = command.OpSkip
	case buttonStop:
		req.Op = command.OpStop
	case buttonRepeat:
		req.Op = command.OpRepeat
	case buttonAutoplay:
		req.Op = command.OpAutoplay
		req.Enable = !snap.Autoplay
	default:
		return command.Request{}, false
	}
	return req, true
}

// onVoiceStateUpdate watches for the bot being left alone in its voice
// channel.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, _ *discordgo.VoiceStateUpdate) {
	for _, snap := range b.registry.Snapshots() {
		channelID, connected := b.voice.ChannelID(snap.GuildID)
		if !connected {
			continue
		}
		sess, ok := b.registry.Get(snap.GuildID)
		if !ok {
			continue
		}
		if b.listenerCount(s, snap.GuildID, channelID) == 0 {
			sess.MarkAlone()
		} else {
			sess.MarkAccompanied()
		}
	}
}

// listenerCount counts non-bot users in a voice channel.
func (b *Bot) listenerCount(s *discordgo.Session, guildID, channelID string) int {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return 0
	}
	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == s.State.User.ID {
			continue
		}
		if member, err := s.State.Member(guildID, vs.UserID); err == nil && member.User != nil && member.User.Bot {
			continue
		}
		count++
	}
	return count
}

// userVoiceChannel finds the voice channel a user currently occupies.
func (b *Bot) userVoiceChannel(s *discordgo.Session, guildID, userID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID
		}
	}
	return ""
}

func (b *Bot) replyQueue(s *discordgo.Session, m *discordgo.MessageCreate, pc parsed) {
	sess, ok := b.registry.Get(m.GuildID)
	if !ok {
		b.reply(s, m.ChannelID, "Nothing is playing in this server.")
		return
	}

	snap := sess.Snapshot()
	var view ui.View
	if page := argCount(pc.args, 0); page > 0 {
		view = b.renderer.RenderPage(snap, page)
	} else {
		view = b.renderer.Render(snap)
	}

	_, err := s.ChannelMessageSendEmbed(m.ChannelID, buildEmbed(view))
	if err != nil {
		zlog.Warn().Err(err).Msgf("discord: failed to send queue: guild=%s", m.GuildID)
	}
}

func (b *Bot) replyCandidates(s *discordgo.Session, channelID string, res command.Result) {
	var desc strings.Builder
	for i, c := range res.Candidates {
		fmt.Fprintf(&desc, "`%d.` %s\n", i+1, c.Title)
	}
	embed := &discordgo.MessageEmbed{
		Title:       "🎶 Recommendations",
		Description: desc.String(),
		Color:       0x5865F2,
	}
	if _, err := s.ChannelMessageSendEmbed(channelID, embed); err != nil {
		zlog.Warn().Err(err).Msg("discord: failed to send recommendations")
	}
}

func (b *Bot) reply(s *discordgo.Session, channelID, text string) {
	if _, err := s.ChannelMessageSend(channelID, text); err != nil {
		zlog.Warn().Err(err).Msgf("discord: failed to reply: channel=%s", channelID)
	}
}

// errorText renders an error for chat. Validation problems are the
// user's to fix; anything else gets a generic line and a log entry.
func errorText(err error) string {
	if session.IsValidation(err) {
		return "⚠️ " + userMessage(err)
	}
	zlog.Error().Err(err).Msg("discord: command failed")
	return "Something went wrong, try again."
}

// userMessage strips the sentinel chain off a validation error so the
// chat reply reads naturally. The suffixes come from the sentinels
// themselves, so renaming one cannot desynchronize this.
func userMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{session.ErrValidation, queue.ErrIndexOutOfRange, queue.ErrEmpty} {
		if errors.Is(err, sentinel) {
			msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
		}
	}
	return msg
}
