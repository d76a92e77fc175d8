package session

import (
	"github.com/cockroachdb/errors"

	"github.com/tunebox-bot/tunebox/internal/domain/queue"
)

// ErrValidation marks errors caused by invalid user input. Operations
// returning a validation error leave the session completely unchanged.
var ErrValidation = errors.New("invalid request")

var (
	ErrNotPlaying       = errors.Wrap(ErrValidation, "nothing is playing")
	ErrNotPaused        = errors.Wrap(ErrValidation, "playback is not paused")
	ErrAlreadyPaused    = errors.Wrap(ErrValidation, "playback is already paused")
	ErrQueueEmpty       = errors.Wrap(ErrValidation, "the queue is empty")
	ErrVolumeOutOfRange = errors.Wrap(ErrValidation, "volume out of range")
	ErrClosed           = errors.New("session is closed")
)

// IsValidation reports whether err was caused by user input rather than
// an internal failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, queue.ErrIndexOutOfRange) ||
		errors.Is(err, queue.ErrEmpty)
}
