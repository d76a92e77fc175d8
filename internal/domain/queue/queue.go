// Package queue implements the ordered track queue with a current-index
// cursor that playback advances through.
package queue

import (
	"math/rand"

	"github.com/cockroachdb/errors"

	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

// NoCurrent is the cursor value before anything has started playing.
const NoCurrent = -1

var (
	// ErrIndexOutOfRange is returned when a position argument does not
	// address an element of the queue. The queue is left unchanged.
	ErrIndexOutOfRange = errors.New("queue index out of range")
	// ErrEmpty is returned by operations that need at least one element.
	ErrEmpty = errors.New("queue is empty")
)

// Queue is an ordered list of tracks plus a cursor. Cursor values:
// NoCurrent before first playback, a valid index while a track is
// current, len(items) once the queue is exhausted.
//
// Queue is not safe for concurrent use; the owning session serializes
// access.
type Queue struct {
	items  []track.Track
	cursor int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{cursor: NoCurrent}
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int { return len(q.items) }

// Cursor returns the raw cursor position.
func (q *Queue) Cursor() int { return q.cursor }

// Exhausted reports that the cursor has advanced past the last track.
func (q *Queue) Exhausted() bool { return q.cursor >= len(q.items) }

// Current returns the track at the cursor, if one exists.
func (q *Queue) Current() (track.Track, bool) {
	if q.cursor < 0 || q.cursor >= len(q.items) {
		return track.Track{}, false
	}
	return q.items[q.cursor], true
}

// HasNext reports whether a track exists after the cursor.
func (q *Queue) HasNext() bool {
	return q.cursor+1 < len(q.items)
}

// Tracks returns a copy of the queued tracks in order.
func (q *Queue) Tracks() []track.Track {
	out := make([]track.Track, len(q.items))
	copy(out, q.items)
	return out
}

// Append adds tracks to the tail.
func (q *Queue) Append(ts ...track.Track) {
	q.items = append(q.items, ts...)
}

// UpdateCurrent replaces the track at the cursor, preserving its queue
// position. Used to write back lazy-resolution results.
func (q *Queue) UpdateCurrent(t track.Track) bool {
	if q.cursor < 0 || q.cursor >= len(q.items) {
		return false
	}
	q.items[q.cursor] = t
	return true
}

// Advance moves the cursor one position forward and returns the new
// current track. ok is false when the move exhausted the queue.
func (q *Queue) Advance() (track.Track, bool) {
	if q.cursor < len(q.items) {
		q.cursor++
	}
	return q.Current()
}

// JumpTo moves the cursor to position i, forward or backward.
func (q *Queue) JumpTo(i int) (track.Track, error) {
	if i < 0 || i >= len(q.items) {
		return track.Track{}, errors.Wrapf(ErrIndexOutOfRange, "jump to %d with %d queued", i, len(q.items))
	}
	q.cursor = i
	return q.items[i], nil
}

// Remove deletes the track at position i and returns it. currentRemoved
// reports that i was the cursor position: the next track has slid into
// the cursor slot (or the queue is now exhausted) and the caller must
// restart or stop playback.
func (q *Queue) Remove(i int) (removed track.Track, currentRemoved bool, err error) {
	if i < 0 || i >= len(q.items) {
		return track.Track{}, false, errors.Wrapf(ErrIndexOutOfRange, "remove %d with %d queued", i, len(q.items))
	}
	removed = q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	switch {
	case i < q.cursor:
		q.cursor--
	case i == q.cursor:
		currentRemoved = true
	}
	return removed, currentRemoved, nil
}

// Move relocates the track at position from to position to. Positions
// are interpreted against the queue before the move, matching what the
// caller sees. The cursor follows the current track wherever it ends up.
func (q *Queue) Move(from, to int) error {
	n := len(q.items)
	if from < 0 || from >= n {
		return errors.Wrapf(ErrIndexOutOfRange, "move from %d with %d queued", from, n)
	}
	if to < 0 || to >= n {
		return errors.Wrapf(ErrIndexOutOfRange, "move to %d with %d queued", to, n)
	}
	if from == to {
		return nil
	}

	t := q.items[from]
	rest := append(q.items[:from], q.items[from+1:]...)
	q.items = append(rest[:to], append([]track.Track{t}, rest[to:]...)...)

	switch {
	case q.cursor == from:
		q.cursor = to
	case from < q.cursor && to >= q.cursor:
		q.cursor--
	case from > q.cursor && to <= q.cursor:
		q.cursor++
	}
	return nil
}

// Shuffle permutes every position except the cursor position, which keeps
// its track. Does nothing with fewer than two movable tracks.
func (q *Queue) Shuffle(rng *rand.Rand) {
	movable := make([]int, 0, len(q.items))
	for i := range q.items {
		if i != q.cursor {
			movable = append(movable, i)
		}
	}
	if len(movable) < 2 {
		return
	}

	pool := make([]track.Track, len(movable))
	for j, i := range movable {
		pool[j] = q.items[i]
	}
	rng.Shuffle(len(pool), func(a, b int) {
		pool[a], pool[b] = pool[b], pool[a]
	})
	for j, i := range movable {
		q.items[i] = pool[j]
	}
}

// Clear drops every track and resets the cursor.
func (q *Queue) Clear() {
	q.items = nil
	q.cursor = NoCurrent
}
