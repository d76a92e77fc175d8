package discord

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebox-bot/tunebox/internal/app/command"
	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/domain/queue"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected parsed
		ok       bool
	}{
		{
			name:     "simple command",
			content:  "!pause",
			expected: parsed{name: "pause", args: []string{}},
			ok:       true,
		},
		{
			name:     "command with args",
			content:  "!play never gonna give you up",
			expected: parsed{name: "play", args: []string{"never", "gonna", "give", "you", "up"}},
			ok:       true,
		},
		{
			name:     "uppercase command is normalized",
			content:  "!PLAY song",
			expected: parsed{name: "play", args: []string{"song"}},
			ok:       true,
		},
		{
			name:     "surrounding whitespace",
			content:  "  !skip  ",
			expected: parsed{name: "skip", args: []string{}},
			ok:       true,
		},
		{
			name:    "no prefix",
			content: "hello there",
		},
		{
			name:    "bare prefix",
			content: "!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, ok := parseMessage("!", tt.content)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected.name, pc.name)
				assert.Equal(t, tt.expected.args, pc.args)
			}
		})
	}
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name     string
		pc       parsed
		expected command.Request
	}{
		{
			name: "play joins args into query",
			pc:   parsed{name: "play", args: []string{"some", "song"}},
			expected: command.Request{
				Op:    command.OpPlay,
				Query: "some song",
			},
		},
		{
			name: "p alias",
			pc:   parsed{name: "p", args: []string{"x"}},
			expected: command.Request{
				Op:    command.OpPlay,
				Query: "x",
			},
		},
		{
			name: "jump parses index",
			pc:   parsed{name: "jump", args: []string{"3"}},
			expected: command.Request{
				Op:    command.OpJump,
				Index: 3,
			},
		},
		{
			name: "move parses both positions",
			pc:   parsed{name: "move", args: []string{"4", "1"}},
			expected: command.Request{
				Op:   command.OpMove,
				From: 4,
				To:   1,
			},
		},
		{
			name: "volume percent",
			pc:   parsed{name: "volume", args: []string{"150"}},
			expected: command.Request{
				Op:     command.OpVolume,
				Volume: 1.5,
			},
		},
		{
			name: "volume with percent sign",
			pc:   parsed{name: "vol", args: []string{"50%"}},
			expected: command.Request{
				Op:     command.OpVolume,
				Volume: 0.5,
			},
		},
		{
			name: "autoplay off",
			pc:   parsed{name: "ap", args: []string{"off"}},
			expected: command.Request{
				Op:     command.OpAutoplay,
				Enable: false,
			},
		},
		{
			name: "recommend default count",
			pc:   parsed{name: "recommend", args: []string{}},
			expected: command.Request{
				Op:    command.OpRecommend,
				Count: 5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := buildRequest(tt.pc, "g1", "u1", "alice", "vc1")
			require.NoError(t, err)

			tt.expected.GuildID = "g1"
			tt.expected.UserID = "u1"
			tt.expected.UserName = "alice"
			tt.expected.VoiceChannelID = "vc1"
			assert.Equal(t, tt.expected, req)
		})
	}
}

func TestBuildRequest_BadArgs(t *testing.T) {
	tests := []struct {
		name string
		pc   parsed
	}{
		{name: "jump without index", pc: parsed{name: "jump"}},
		{name: "jump with text index", pc: parsed{name: "jump", args: []string{"first"}}},
		{name: "jump with zero index", pc: parsed{name: "jump", args: []string{"0"}}},
		{name: "move with one arg", pc: parsed{name: "move", args: []string{"2"}}},
		{name: "volume without value", pc: parsed{name: "volume"}},
		{name: "volume with text", pc: parsed{name: "volume", args: []string{"loud"}}},
		{name: "autoplay with junk", pc: parsed{name: "ap", args: []string{"maybe"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildRequest(tt.pc, "g1", "u1", "alice", "")
			assert.True(t, session.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestBuildRequest_UnknownCommand(t *testing.T) {
	_, err := buildRequest(parsed{name: "dance"}, "g1", "u1", "alice", "")
	assert.ErrorIs(t, err, command.ErrUnknownOp)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "playback is already paused", userMessage(session.ErrAlreadyPaused))
	assert.Equal(t, "the queue is empty", userMessage(session.ErrQueueEmpty))

	// Wrapped sentinels keep their context and lose the sentinel tail.
	err := errors.Wrapf(queue.ErrIndexOutOfRange, "remove %d with %d queued", 9, 2)
	assert.Equal(t, "remove 9 with 2 queued", userMessage(err))
	err = errors.Wrap(session.ErrValidation, "not connected to a voice channel")
	assert.Equal(t, "not connected to a voice channel", userMessage(err))
}
