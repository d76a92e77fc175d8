// Package pipeline runs the audio path for one track: ffmpeg decodes the
// stream URL to raw PCM, gopus encodes 20ms frames to Opus, and the
// frames go out over the guild's Discord voice connection.
package pipeline

import (
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// ConnectionProvider hands out live voice connections per guild.
// Implemented by the Discord layer.
type ConnectionProvider interface {
	Connection(guildID string) (*discordgo.VoiceConnection, error)
}

// Pipeline starts audio streams. Implements session.PipelineStarter.
type Pipeline struct {
	voice  ConnectionProvider
	ffmpeg string
}

// New creates a pipeline using the given ffmpeg binary; empty means
// "ffmpeg" from PATH.
func New(voice ConnectionProvider, ffmpegPath string) *Pipeline {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Pipeline{voice: voice, ffmpeg: ffmpegPath}
}

// Start launches ffmpeg for the track and begins streaming. The returned
// handle controls the stream; its Done channel delivers exactly one
// outcome.
func (p *Pipeline) Start(ctx context.Context, guildID string, t track.Track, volume float64) (session.PipelineHandle, error) {
	if !t.Resolved() {
		return nil, errors.New("track has no stream URL")
	}

	vc, err := p.voice.Connection(guildID)
	if err != nil {
		return nil, errors.Wrapf(err, "no voice connection: guild=%s", guildID)
	}

	cmd := exec.CommandContext(ctx, p.ffmpeg,
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", t.StreamURL,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe error")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "ffmpeg start error")
	}

	h := newHandle(volume)
	zlog.Info().Msgf("pipeline: stream started: guild=%s title=%s", guildID, t.Title)

	go func() {
		err := h.run(vc, stdout)
		_ = cmd.Process.Kill()
		_ = cmd.Wait()

		switch {
		case h.stopped():
			h.finish(session.OutcomeStopped)
		case err == nil:
			h.finish(session.OutcomeFinished)
		default:
			zlog.Warn().Err(err).Msgf("pipeline: stream error: guild=%s title=%s", guildID, t.Title)
			h.finish(session.OutcomeError)
		}
	}()

	return h, nil
}

// run streams PCM frames until EOF or stop. A nil return means the
// track played to its end.
func (h *handle) run(vc *discordgo.VoiceConnection, pcm io.Reader) error {
	if err := vc.Speaking(true); err != nil {
		return errors.Wrap(err, "speaking on error")
	}
	defer func() { _ = vc.Speaking(false) }()

	enc, err := gopusEncoder()
	if err != nil {
		return err
	}

	pcmBuf := make([]byte, frameSize*channels*2)
	frame := make([]int16, frameSize*channels)

	for {
		if h.stopped() {
			return nil
		}
		h.waitIfPaused()

		if _, err := io.ReadFull(pcm, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return errors.Wrap(err, "pcm read error")
		}

		decodeFrame(pcmBuf, frame)
		applyVolume(frame, h.volume())

		opus, err := enc.Encode(frame, frameSize, len(pcmBuf))
		if err != nil {
			return errors.Wrap(err, "opus encode error")
		}

		select {
		case vc.OpusSend <- opus:
		case <-h.stop:
			return nil
		}
	}
}
