package pipeline

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebox-bot/tunebox/internal/app/session"
)

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		name     string
		frame    []int16
		volume   float64
		expected []int16
	}{
		{
			name:     "unity gain is untouched",
			frame:    []int16{100, -100, 32000},
			volume:   1.0,
			expected: []int16{100, -100, 32000},
		},
		{
			name:     "half volume",
			frame:    []int16{100, -100, 0},
			volume:   0.5,
			expected: []int16{50, -50, 0},
		},
		{
			name:     "boost clamps at int16 max",
			frame:    []int16{30000, -30000},
			volume:   2.0,
			expected: []int16{math.MaxInt16, math.MinInt16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := make([]int16, len(tt.frame))
			copy(frame, tt.frame)
			applyVolume(frame, tt.volume)
			assert.Equal(t, tt.expected, frame)
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80}
	out := make([]int16, 3)
	decodeFrame(pcm, out)
	assert.Equal(t, []int16{1, -1, math.MinInt16}, out)
}

func TestHandle_PauseResume(t *testing.T) {
	h := newHandle(0.5)

	h.Pause()

	released := make(chan struct{})
	go func() {
		h.waitIfPaused()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("waitIfPaused returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	h.Resume()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("waitIfPaused did not return after resume")
	}
}

func TestHandle_StopWakesPausedStream(t *testing.T) {
	h := newHandle(0.5)
	h.Pause()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.waitIfPaused()
	}()

	h.Stop()
	wg.Wait()
	assert.True(t, h.stopped())
}

func TestHandle_FinishDeliversExactlyOnce(t *testing.T) {
	h := newHandle(1.0)
	h.finish(session.OutcomeFinished)
	h.finish(session.OutcomeError)
	h.finish(session.OutcomeStopped)

	select {
	case out := <-h.Done():
		assert.Equal(t, session.OutcomeFinished, out)
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
	}

	select {
	case out := <-h.Done():
		t.Fatalf("unexpected second outcome: %v", out)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandle_VolumeIsLive(t *testing.T) {
	h := newHandle(0.5)
	require.Equal(t, 0.5, h.volume())
	h.SetVolume(1.5)
	assert.Equal(t, 1.5, h.volume())
}

func TestHandle_RepeatedPauseAndStopAreSafe(t *testing.T) {
	h := newHandle(1.0)
	h.Pause()
	h.Pause()
	h.Resume()
	h.Resume()
	h.Stop()
	h.Stop()
	assert.True(t, h.stopped())
}
