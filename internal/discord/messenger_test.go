package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebox-bot/tunebox/internal/app/ui"
)

func playerView() ui.View {
	return ui.View{
		Header:     "▶️ Now Playing",
		TrackTitle: "Some Song",
		TrackURL:   "https://youtube.com/watch?v=x",
		Thumbnail:  "https://img.example/t.jpg",
		Duration:   "3:00",
		Requester:  "alice",
		Volume:     "50%",
		QueueLines: []ui.QueueLine{
			{Position: 1, Title: "Some Song", Duration: "3:00", Current: true},
			{Position: 2, Title: "Next Song", Duration: "4:10"},
		},
		Page:      1,
		PageCount: 1,
		Footer:    "2 in queue",
		Buttons: ui.Buttons{
			PlayPauseEnabled: true,
			PlayPauseLabel:   "Pause",
			NextEnabled:      true,
			StopEnabled:      true,
		},
	}
}

func TestBuildEmbed(t *testing.T) {
	embed := buildEmbed(playerView())

	assert.Equal(t, "▶️ Now Playing", embed.Title)
	assert.Contains(t, embed.Description, "[Some Song](https://youtube.com/watch?v=x)")
	assert.Contains(t, embed.Description, "3:00")
	assert.Contains(t, embed.Description, "alice")
	assert.Contains(t, embed.Description, "50%")
	assert.Equal(t, "https://img.example/t.jpg", embed.Thumbnail.URL)
	assert.Equal(t, "2 in queue", embed.Footer.Text)

	require.Len(t, embed.Fields, 1)
	assert.Contains(t, embed.Fields[0].Value, "▶ ` 1.` Some Song")
	assert.Contains(t, embed.Fields[0].Value, "` 2.` Next Song")
}

func TestBuildEmbed_Idle(t *testing.T) {
	embed := buildEmbed(ui.View{Header: "💤 Idle", Footer: "0 in queue"})

	assert.Equal(t, "💤 Idle", embed.Title)
	assert.Contains(t, embed.Description, "Nothing playing")
	assert.Nil(t, embed.Thumbnail)
	assert.Empty(t, embed.Fields)
}

func TestBuildComponents(t *testing.T) {
	v := playerView()
	v.Buttons.RepeatActive = true

	components := buildComponents(v)
	require.Len(t, components, 2)

	row1, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row1.Components, 4)

	prev := row1.Components[0].(discordgo.Button)
	assert.Equal(t, buttonPrev, prev.CustomID)
	assert.True(t, prev.Disabled, "first track has no previous")

	playPause := row1.Components[1].(discordgo.Button)
	assert.Equal(t, "Pause", playPause.Label)
	assert.False(t, playPause.Disabled)

	row2, ok := components[1].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row2.Components, 2)

	repeat := row2.Components[0].(discordgo.Button)
	assert.Equal(t, discordgo.SuccessButton, repeat.Style, "active toggle is highlighted")
	autoplay := row2.Components[1].(discordgo.Button)
	assert.Equal(t, discordgo.SecondaryButton, autoplay.Style)
}

func TestMessenger_BindChannelTracksLatest(t *testing.T) {
	m := NewMessenger(nil, ui.NewRenderer(10))
	m.BindChannel("g1", "c1")
	m.BindChannel("g1", "c1")

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Contains(t, m.msgs, "g1")
	assert.Equal(t, "c1", m.msgs["g1"].channelID)
}
