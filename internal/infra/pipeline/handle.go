package pipeline

import (
	"encoding/binary"
	"math"
	"sync"

	"layeh.com/gopus"

	"github.com/tunebox-bot/tunebox/internal/app/session"
)

// handle controls one running stream. Implements session.PipelineHandle.
type handle struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{} // closed to wake a paused run loop
	vol    float64

	stop     chan struct{}
	stopOnce sync.Once

	done     chan session.Outcome
	doneOnce sync.Once
}

func newHandle(volume float64) *handle {
	return &handle{
		resume: make(chan struct{}),
		vol:    volume,
		stop:   make(chan struct{}),
		done:   make(chan session.Outcome, 1),
	}
}

func (h *handle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.paused {
		h.paused = true
		h.resume = make(chan struct{})
	}
}

func (h *handle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.paused {
		h.paused = false
		close(h.resume)
	}
}

func (h *handle) SetVolume(v float64) {
	h.mu.Lock()
	h.vol = v
	h.mu.Unlock()
}

func (h *handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	// A paused stream must wake up to observe the stop.
	h.Resume()
}

func (h *handle) Done() <-chan session.Outcome {
	return h.done
}

func (h *handle) finish(out session.Outcome) {
	h.doneOnce.Do(func() {
		h.done <- out
	})
}

func (h *handle) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

func (h *handle) volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vol
}

// waitIfPaused blocks the run loop while paused. Stop resumes first, so
// this never deadlocks a stopping stream.
func (h *handle) waitIfPaused() {
	h.mu.Lock()
	paused := h.paused
	resume := h.resume
	h.mu.Unlock()
	if paused {
		<-resume
	}
}

func gopusEncoder() (*gopus.Encoder, error) {
	return gopus.NewEncoder(sampleRate, channels, gopus.Audio)
}

// decodeFrame converts little-endian PCM bytes to int16 samples.
func decodeFrame(pcm []byte, out []int16) {
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
}

// applyVolume scales samples in place, clamping at the int16 range.
func applyVolume(frame []int16, volume float64) {
	if volume == 1.0 {
		return
	}
	for i, s := range frame {
		scaled := float64(s) * volume
		switch {
		case scaled > math.MaxInt16:
			frame[i] = math.MaxInt16
		case scaled < math.MinInt16:
			frame[i] = math.MinInt16
		default:
			frame[i] = int16(scaled)
		}
	}
}
