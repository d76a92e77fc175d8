package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// VoiceGateway owns the guild voice connections. Implements
// session.VoiceManager and pipeline.ConnectionProvider.
type VoiceGateway struct {
	mu    sync.RWMutex
	dg    *discordgo.Session
	conns map[string]*discordgo.VoiceConnection
}

// NewVoiceGateway creates a gateway over an open Discord session.
func NewVoiceGateway(dg *discordgo.Session) *VoiceGateway {
	return &VoiceGateway{
		dg:    dg,
		conns: make(map[string]*discordgo.VoiceConnection),
	}
}

// Join connects the guild's voice connection, moving channels when
// already connected elsewhere. Joining the current channel is a no-op.
func (g *VoiceGateway) Join(guildID, channelID string) error {
	if channelID == "" {
		return errors.New("no voice channel to join")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if conn, ok := g.conns[guildID]; ok && conn.ChannelID == channelID {
		return nil
	}

	conn, err := g.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return errors.Wrapf(err, "failed to join voice: guild=%s channel=%s", guildID, channelID)
	}
	g.conns[guildID] = conn
	zlog.Info().Msgf("voice: joined: guild=%s channel=%s", guildID, channelID)
	return nil
}

// Leave disconnects the guild's voice connection, if any.
func (g *VoiceGateway) Leave(guildID string) error {
	g.mu.Lock()
	conn, ok := g.conns[guildID]
	delete(g.conns, guildID)
	g.mu.Unlock()

	if !ok {
		return nil
	}
	if err := conn.Disconnect(); err != nil {
		return errors.Wrapf(err, "failed to leave voice: guild=%s", guildID)
	}
	zlog.Info().Msgf("voice: left: guild=%s", guildID)
	return nil
}

// Connection returns the guild's live voice connection for the audio
// pipeline.
func (g *VoiceGateway) Connection(guildID string) (*discordgo.VoiceConnection, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	conn, ok := g.conns[guildID]
	if !ok {
		return nil, errors.Newf("not connected to voice: guild=%s", guildID)
	}
	return conn, nil
}

// Connected reports whether the guild has a live voice connection.
func (g *VoiceGateway) Connected(guildID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.conns[guildID]
	return ok
}

// ChannelID returns the channel the bot occupies in the guild, if any.
func (g *VoiceGateway) ChannelID(guildID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	conn, ok := g.conns[guildID]
	if !ok {
		return "", false
	}
	return conn.ChannelID, true
}
