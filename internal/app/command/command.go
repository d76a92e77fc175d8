// Package command is the single entry point for mutating guild
// sessions. Both the Discord handlers and the dashboard control API
// dispatch through it, so validation, rate limiting, and stats counting
// happen in one place.
package command

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

// Op identifies one operation of the closed command set.
type Op string

const (
	OpPlay      Op = "play"
	OpPause     Op = "pause"
	OpResume    Op = "resume"
	OpStop      Op = "stop"
	OpSkip      Op = "skip"
	OpJump      Op = "jump"
	OpRemove    Op = "remove"
	OpMove      Op = "move"
	OpShuffle   Op = "shuffle"
	OpRepeat    Op = "repeat"
	OpVolume    Op = "volume"
	OpAutoplay  Op = "autoplay"
	OpRecommend Op = "recommend"
	OpLeave     Op = "leave"
)

// ErrUnknownOp is returned for operations outside the closed set.
var ErrUnknownOp = errors.New("unknown operation")

// ErrNoSession is returned when an operation requires a live session.
var ErrNoSession = errors.Wrap(session.ErrValidation, "nothing is playing in this server")

// Request carries one operation with its arguments.
type Request struct {
	GuildID  string
	UserID   string
	UserName string
	Op       Op

	// Op-specific arguments
	Query          string  // play
	Index          int     // jump, remove (1-based)
	From, To       int     // move (1-based)
	Volume         float64 // volume
	Enable         bool    // autoplay
	Count          int     // recommend
	VoiceChannelID string  // play; empty for remote control
}

// Result is the user-facing outcome of a dispatched operation.
type Result struct {
	Message    string
	Tracks     []track.Track       // play
	Candidates []session.Candidate // recommend
}

// StatsSink counts dispatched commands. Satisfied by stats.Collector.
type StatsSink interface {
	RecordCommand(name string)
}

// Dispatcher validates and routes requests to guild sessions.
type Dispatcher struct {
	registry *session.Registry
	limiter  *UserLimiter
	stats    StatsSink
}

// NewDispatcher creates a dispatcher. stats may be nil.
func NewDispatcher(registry *session.Registry, limiter *UserLimiter, stats StatsSink) *Dispatcher {
	return &Dispatcher{registry: registry, limiter: limiter, stats: stats}
}

// Dispatch executes one request. Validation failures (session.IsValidation)
// leave all state unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if req.GuildID == "" {
		return Result{}, errors.Wrap(session.ErrValidation, "missing guild")
	}
	if d.limiter != nil && !d.limiter.Allow(req.UserID) {
		return Result{}, ErrRateLimited
	}
	if d.stats != nil {
		d.stats.RecordCommand(string(req.Op))
	}

	switch req.Op {
	case OpPlay:
		return d.play(ctx, req)
	case OpPause:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: "Paused."}, s.Pause()
	case OpResume:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: "Resumed."}, s.Resume()
	case OpStop:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: "Stopped and cleared the queue."}, s.Stop()
	case OpSkip:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: "Skipped."}, s.Skip()
	case OpJump:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("Jumped to track %d.", req.Index)}, s.Jump(req.Index)
	case OpRemove:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		removed, err := s.Remove(req.Index)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("Removed **%s**.", removed.Title)}, nil
	case OpMove:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		if err := s.Move(req.From, req.To); err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("Moved track %d to position %d.", req.From, req.To)}, nil
	case OpShuffle:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: "Queue shuffled."}, s.Shuffle()
	case OpRepeat:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		if s.ToggleRepeat() {
			return Result{Message: "Repeat enabled."}, nil
		}
		return Result{Message: "Repeat disabled."}, nil
	case OpVolume:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		if err := s.SetVolume(req.Volume); err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("Volume set to %d%%.", int(req.Volume*100+0.5))}, nil
	case OpAutoplay:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		s.SetAutoplay(req.Enable)
		if req.Enable {
			return Result{Message: "Autoplay enabled."}, nil
		}
		return Result{Message: "Autoplay disabled."}, nil
	case OpRecommend:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		cands, err := s.Recommend(req.Count)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: "Here is what this server has been listening to.", Candidates: cands}, nil
	case OpLeave:
		s, err := d.existing(req.GuildID)
		if err != nil {
			return Result{}, err
		}
		s.Destroy("leave command")
		return Result{Message: "Left the voice channel."}, nil
	default:
		return Result{}, errors.Wrapf(ErrUnknownOp, "%q", req.Op)
	}
}

func (d *Dispatcher) play(ctx context.Context, req Request) (Result, error) {
	if req.Query == "" {
		return Result{}, errors.Wrap(session.ErrValidation, "nothing to play")
	}
	s, _ := d.registry.GetOrCreate(req.GuildID)
	tracks, err := s.Play(ctx, req.Query, track.Requester{ID: req.UserID, Name: req.UserName}, req.VoiceChannelID)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Queued **%s**.", tracks[0].Title)
	if len(tracks) > 1 {
		msg = fmt.Sprintf("Queued **%s** and %d more.", tracks[0].Title, len(tracks)-1)
	}
	return Result{Message: msg, Tracks: tracks}, nil
}

func (d *Dispatcher) existing(guildID string) (*session.Session, error) {
	s, ok := d.registry.Get(guildID)
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}
