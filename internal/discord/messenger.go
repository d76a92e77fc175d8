package discord

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/app/ui"
)

// Component custom IDs for the player control row.
const (
	buttonPrev      = "player:prev"
	buttonPlayPause = "player:playpause"
	buttonNext      = "player:next"
	buttonStop      = "player:stop"
	buttonRepeat    = "player:repeat"
	buttonAutoplay  = "player:autoplay"
)

// Messenger owns the single live player message per guild and keeps it
// in sync with session state. Implements session.Notifier.
type Messenger struct {
	mu       sync.Mutex
	dg       *discordgo.Session
	renderer *ui.Renderer
	msgs     map[string]*playerMessage
}

type playerMessage struct {
	channelID string
	messageID string
	lastView  ui.View
}

// NewMessenger creates a messenger over an open Discord session.
func NewMessenger(dg *discordgo.Session, renderer *ui.Renderer) *Messenger {
	return &Messenger{
		dg:       dg,
		renderer: renderer,
		msgs:     make(map[string]*playerMessage),
	}
}

// BindChannel records which text channel the guild's player message
// lives in. Called from the command that touched the session last.
func (m *Messenger) BindChannel(guildID, channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.msgs[guildID]
	if !ok {
		m.msgs[guildID] = &playerMessage{channelID: channelID}
		return
	}
	if pm.channelID != channelID {
		// Player moved to another channel; drop the old message.
		if pm.messageID != "" {
			_ = m.dg.ChannelMessageDelete(pm.channelID, pm.messageID)
		}
		pm.channelID = channelID
		pm.messageID = ""
		pm.lastView = ui.View{}
	}
}

// SessionChanged re-renders the guild's player message. Identical views
// skip the edit, so redundant notifications cost nothing.
func (m *Messenger) SessionChanged(snap session.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm, ok := m.msgs[snap.GuildID]
	if !ok || pm.channelID == "" {
		return
	}

	view := m.renderer.Render(snap)
	if pm.messageID != "" && reflect.DeepEqual(view, pm.lastView) {
		return
	}

	embed := buildEmbed(view)
	components := buildComponents(view)

	if pm.messageID != "" {
		_, err := m.dg.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    pm.channelID,
			ID:         pm.messageID,
			Embeds:     &[]*discordgo.MessageEmbed{embed},
			Components: &components,
		})
		if err == nil {
			pm.lastView = view
			return
		}
		// The message may have been deleted by a moderator; recreate.
		zlog.Debug().Err(err).Msgf("messenger: edit failed, recreating: guild=%s", snap.GuildID)
		pm.messageID = ""
	}

	msg, err := m.dg.ChannelMessageSendComplex(pm.channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		zlog.Warn().Err(err).Msgf("messenger: failed to send player message: guild=%s", snap.GuildID)
		return
	}
	pm.messageID = msg.ID
	pm.lastView = view
}

// SessionDestroyed removes the guild's player message.
func (m *Messenger) SessionDestroyed(guildID string) {
	m.mu.Lock()
	pm, ok := m.msgs[guildID]
	delete(m.msgs, guildID)
	m.mu.Unlock()

	if ok && pm.messageID != "" {
		_ = m.dg.ChannelMessageDelete(pm.channelID, pm.messageID)
	}
}

// buildEmbed turns a rendered view into a Discord embed.
func buildEmbed(v ui.View) *discordgo.MessageEmbed {
	var desc strings.Builder
	if v.TrackTitle != "" {
		if v.TrackURL != "" {
			fmt.Fprintf(&desc, "**[%s](%s)**\n", v.TrackTitle, v.TrackURL)
		} else {
			fmt.Fprintf(&desc, "**%s**\n", v.TrackTitle)
		}
		fmt.Fprintf(&desc, "`%s` • %s • 🔊 %s", v.Duration, v.Requester, v.Volume)
	} else {
		desc.WriteString("Nothing playing. Queue something with `!play`.")
	}

	embed := &discordgo.MessageEmbed{
		Title:       v.Header,
		Description: desc.String(),
		Color:       0x5865F2,
		Footer:      &discordgo.MessageEmbedFooter{Text: v.Footer},
	}
	if v.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: v.Thumbnail}
	}

	if len(v.QueueLines) > 0 {
		var b strings.Builder
		for _, line := range v.QueueLines {
			marker := "  "
			if line.Current {
				marker = "▶ "
			}
			fmt.Fprintf(&b, "%s`%2d.` %s `%s`\n", marker, line.Position, line.Title, line.Duration)
		}
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Queue", Value: b.String()},
		}
	}
	return embed
}

// buildComponents turns a rendered view into the control button rows.
func buildComponents(v ui.View) []discordgo.MessageComponent {
	secondaryOr := func(active bool) discordgo.ButtonStyle {
		if active {
			return discordgo.SuccessButton
		}
		return discordgo.SecondaryButton
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Emoji:    &discordgo.ComponentEmoji{Name: "⏮️"},
					Style:    discordgo.SecondaryButton,
					CustomID: buttonPrev,
					Disabled: !v.Buttons.PrevEnabled,
				},
				discordgo.Button{
					Label:    v.Buttons.PlayPauseLabel,
					Style:    discordgo.PrimaryButton,
					CustomID: buttonPlayPause,
					Disabled: !v.Buttons.PlayPauseEnabled,
				},
				discordgo.Button{
					Emoji:    &discordgo.ComponentEmoji{Name: "⏭️"},
					Style:    discordgo.SecondaryButton,
					CustomID: buttonNext,
					Disabled: !v.Buttons.NextEnabled,
				},
				discordgo.Button{
					Emoji:    &discordgo.ComponentEmoji{Name: "⏹️"},
					Style:    discordgo.DangerButton,
					CustomID: buttonStop,
					Disabled: !v.Buttons.StopEnabled,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Repeat",
					Emoji:    &discordgo.ComponentEmoji{Name: "🔂"},
					Style:    secondaryOr(v.Buttons.RepeatActive),
					CustomID: buttonRepeat,
				},
				discordgo.Button{
					Label:    "Autoplay",
					Emoji:    &discordgo.ComponentEmoji{Name: "♾️"},
					Style:    secondaryOr(v.Buttons.AutoplayActive),
					CustomID: buttonAutoplay,
				},
			},
		},
	}
}
