// Package session implements the per-guild playback orchestrator: the
// queue state machine, lifecycle timers, and the autoplay loop.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/domain/history"
	"github.com/tunebox-bot/tunebox/internal/domain/queue"
	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

// Session orchestrates playback for one guild. All mutations are
// serialized behind one mutex; slow work (resolution, pipeline startup)
// runs in goroutines that carry the epoch at which they started and
// discard their result if the epoch has moved on.
type Session struct {
	guildID string

	mu          sync.Mutex
	q           *queue.Queue
	status      Status
	repeat      bool
	autoplay    bool
	autoplayRun int // consecutive autoplayed tracks since the last user enqueue
	volume      float64
	epoch       uint64
	handle      PipelineHandle
	closed      bool

	idleCancel  func()
	aloneCancel func()
	graceCancel func()

	rng  *rand.Rand
	cfg  Config
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	// onDestroy removes the session from its registry. Set by the
	// registry before the session is handed out.
	onDestroy func(guildID string)
}

// New creates an idle session for the guild.
func New(guildID string, cfg Config, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		guildID: guildID,
		q:       queue.New(),
		status:  StatusIdle,
		repeat:  cfg.RepeatDefault,
		volume:  cfg.DefaultVolume,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg:     cfg,
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.mu.Lock()
	s.resetIdleTimerLocked()
	s.mu.Unlock()
	return s
}

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() string { return s.guildID }

// Play resolves the query, appends the results, and starts playback if
// nothing is streaming. channelID may be empty for remote control, which
// requires an existing voice connection.
func (s *Session) Play(ctx context.Context, query string, requester track.Requester, channelID string) ([]track.Track, error) {
	if s.Closed() {
		return nil, ErrClosed
	}
	if channelID != "" {
		if err := s.deps.Voice.Join(s.guildID, channelID); err != nil {
			return nil, errors.Wrap(err, "failed to join voice channel")
		}
	} else if !s.deps.Voice.Connected(s.guildID) {
		return nil, errors.Wrap(ErrValidation, "not connected to a voice channel")
	}

	tracks, err := s.deps.Resolver.Resolve(ctx, query, requester)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrValidation, "nothing found for %q", query)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.q.Append(tracks...)
	s.autoplayRun = 0
	if _, ok := s.q.Current(); !ok {
		if s.q.Cursor() == queue.NoCurrent {
			s.q.Advance()
		}
		s.startCurrentLocked()
	} else if s.status == StatusIdle {
		// An exhausted cursor points at the first appended track; idle
		// means nothing is streaming, so playback restarts here.
		s.startCurrentLocked()
	}
	s.resetIdleTimerLocked()
	s.mu.Unlock()

	s.notify()
	return tracks, nil
}

// Join connects the guild's voice channel without starting playback. The
// session owns the connection, so the idle and alone lifecycle applies
// to it.
func (s *Session) Join(channelID string) error {
	if channelID == "" {
		return errors.Wrap(ErrValidation, "no voice channel to join")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.resetIdleTimerLocked()
	s.mu.Unlock()

	if err := s.deps.Voice.Join(s.guildID, channelID); err != nil {
		return errors.Wrap(err, "failed to join voice channel")
	}
	s.notify()
	return nil
}

// Pause suspends frame delivery.
func (s *Session) Pause() error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.status == StatusPaused:
		s.mu.Unlock()
		return ErrAlreadyPaused
	case s.status != StatusPlaying:
		s.mu.Unlock()
		return ErrNotPlaying
	}
	s.handle.Pause()
	s.status = StatusPaused
	s.resetIdleTimerLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Resume continues paused playback.
func (s *Session) Resume() error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.status != StatusPaused:
		s.mu.Unlock()
		return ErrNotPaused
	}
	s.handle.Resume()
	s.status = StatusPlaying
	s.resetIdleTimerLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Stop halts playback and clears the queue. The voice connection stays.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.epoch++
	s.stopPipelineLocked()
	s.q.Clear()
	s.autoplayRun = 0
	s.goIdleLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Skip abandons the current track and moves to the next one.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.q.Current(); !ok {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	s.epoch++
	s.stopPipelineLocked()
	s.advanceLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Jump starts playback at queue position n (1-based), forward or
// backward.
func (s *Session) Jump(n int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, err := s.q.JumpTo(n - 1); err != nil {
		s.mu.Unlock()
		return err
	}
	s.epoch++
	s.stopPipelineLocked()
	s.startCurrentLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Remove deletes queue position n (1-based). Removing the current track
// behaves like a skip: the next track slides in and starts.
func (s *Session) Remove(n int) (track.Track, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return track.Track{}, ErrClosed
	}
	removed, wasCurrent, err := s.q.Remove(n - 1)
	if err != nil {
		s.mu.Unlock()
		return track.Track{}, err
	}
	if wasCurrent {
		s.epoch++
		s.stopPipelineLocked()
		if _, ok := s.q.Current(); ok {
			s.startCurrentLocked()
		} else {
			s.finishQueueLocked()
		}
	}
	s.mu.Unlock()

	s.notify()
	return removed, nil
}

// Move relocates queue position from to position to (both 1-based).
// Playback is unaffected; the cursor follows the current track.
func (s *Session) Move(from, to int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.q.Move(from-1, to-1); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Shuffle permutes the queue, keeping the current track in place.
func (s *Session) Shuffle() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.q.Len() == 0 {
		s.mu.Unlock()
		return ErrQueueEmpty
	}
	s.q.Shuffle(s.rng)
	s.mu.Unlock()

	s.notify()
	return nil
}

// ToggleRepeat flips single-track repeat and returns the new value.
func (s *Session) ToggleRepeat() bool {
	s.mu.Lock()
	s.repeat = !s.repeat
	v := s.repeat
	s.mu.Unlock()

	s.notify()
	return v
}

// SetAutoplay switches the recommendation loop on or off. Enabling it on
// an exhausted queue kicks playback off immediately.
func (s *Session) SetAutoplay(on bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.autoplay = on
	if on {
		s.autoplayRun = 0
		if s.status == StatusIdle {
			if _, ok := s.q.Current(); !ok {
				s.finishQueueLocked()
			}
		}
	}
	s.mu.Unlock()

	s.notify()
}

// SetVolume applies a new volume to the session and any live stream.
func (s *Session) SetVolume(v float64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if v < s.cfg.MinVolume || v > s.cfg.MaxVolume {
		s.mu.Unlock()
		return errors.Wrapf(ErrVolumeOutOfRange, "%.2f not in [%.2f, %.2f]", v, s.cfg.MinVolume, s.cfg.MaxVolume)
	}
	s.volume = v
	if s.handle != nil {
		s.handle.SetVolume(v)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Recommend returns up to k history-based candidates, excluding titles
// already in the queue. k must be within [1, 10].
func (s *Session) Recommend(k int) ([]Candidate, error) {
	if k < 1 || k > 10 {
		return nil, errors.Wrapf(ErrValidation, "recommendation count %d not in [1, 10]", k)
	}
	if s.deps.Recommender == nil {
		return nil, errors.New("no recommendation source configured")
	}
	s.mu.Lock()
	exclude := s.queuedTitlesLocked()
	s.mu.Unlock()
	return s.deps.Recommender.Recommend(s.guildID, k, exclude)
}

// MarkAlone arms the alone timer: after the alone timeout playback
// pauses, and after the grace period the session is destroyed.
func (s *Session) MarkAlone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.aloneCancel != nil {
		return
	}
	zlog.Debug().Msgf("session: bot alone in voice channel: guild=%s timeout=%v", s.guildID, s.cfg.AloneTimeout)
	s.aloneCancel = s.startWallClockTimer(s.cfg.AloneTimeout, s.onAloneTimeout)
}

// MarkAccompanied cancels any pending alone shutdown.
func (s *Session) MarkAccompanied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aloneCancel != nil {
		s.aloneCancel()
		s.aloneCancel = nil
	}
	if s.graceCancel != nil {
		s.graceCancel()
		s.graceCancel = nil
	}
}

// Snapshot returns an immutable view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Destroy tears the session down: pipeline, timers, voice connection,
// registry entry. Idempotent.
func (s *Session) Destroy(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.epoch++
	s.stopPipelineLocked()
	s.cancelTimersLocked()
	s.q.Clear()
	s.status = StatusIdle
	s.mu.Unlock()

	s.cancel()
	zlog.Info().Msgf("session: destroyed: guild=%s reason=%s", s.guildID, reason)
	if err := s.deps.Voice.Leave(s.guildID); err != nil {
		zlog.Warn().Msgf("session: failed to leave voice channel: guild=%s error=%v", s.guildID, err)
	}
	if s.onDestroy != nil {
		s.onDestroy(s.guildID)
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.SessionDestroyed(s.guildID)
	}
}

// Closed reports whether the session has been destroyed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// startCurrentLocked begins playing the cursor track. Slow work happens
// in a goroutine guarded by the epoch taken here.
// Must be called with lock held.
func (s *Session) startCurrentLocked() {
	cur, ok := s.q.Current()
	if !ok {
		s.finishQueueLocked()
		return
	}
	s.epoch++
	epoch := s.epoch
	s.stopPipelineLocked()
	s.status = StatusTransitioning
	go s.startTrack(epoch, cur, s.volume)
}

// startTrack resolves the stream if needed and starts the pipeline.
// Runs without the lock; commits only if the epoch still matches.
func (s *Session) startTrack(epoch uint64, cur track.Track, volume float64) {
	resolved := cur
	if !resolved.Resolved() {
		r, err := s.deps.Resolver.ResolveStream(s.ctx, cur)
		if err != nil {
			s.onTrackFailed(epoch, cur, err)
			return
		}
		resolved = r
	}

	handle, err := s.deps.Pipeline.Start(s.ctx, s.guildID, resolved, volume)
	if err != nil {
		s.onTrackFailed(epoch, cur, err)
		return
	}

	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		handle.Stop()
		return
	}
	s.q.UpdateCurrent(resolved)
	s.handle = handle
	s.status = StatusPlaying
	s.cancelIdleTimerLocked()
	entry := history.Entry{
		Title:       resolved.Title,
		URL:         resolved.URL,
		GuildID:     s.guildID,
		RequesterID: resolved.Requester.ID,
		Duration:    resolved.Duration,
		PlayedAt:    time.Now(),
	}
	s.mu.Unlock()

	zlog.Info().Msgf("session: track started: guild=%s track=%s duration=%v", s.guildID, resolved.Title, resolved.Duration)
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.Record(entry); err != nil {
			zlog.Warn().Msgf("session: failed to record history: guild=%s error=%v", s.guildID, err)
		}
	}
	s.notify()
	go s.watchOutcome(epoch, handle)
}

// onTrackFailed marks the cursor track failed and auto-skips it.
func (s *Session) onTrackFailed(epoch uint64, cur track.Track, cause error) {
	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	zlog.Warn().Msgf("session: track failed, skipping: guild=%s track=%s error=%v", s.guildID, cur.Title, cause)
	failed := cur
	failed.MarkFailed()
	s.q.UpdateCurrent(failed)
	s.advanceLocked()
	s.mu.Unlock()

	s.notify()
}

// watchOutcome waits for the pipeline to finish and applies the
// completion rules.
func (s *Session) watchOutcome(epoch uint64, handle PipelineHandle) {
	var out Outcome
	select {
	case out = <-handle.Done():
	case <-s.ctx.Done():
		return
	}

	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	switch out {
	case OutcomeStopped:
		// The stopping operation already decided what happens next.
		s.mu.Unlock()
		return
	case OutcomeError:
		cur, _ := s.q.Current()
		zlog.Warn().Msgf("session: stream failed mid-play: guild=%s track=%s", s.guildID, cur.Title)
		s.advanceLocked()
	case OutcomeFinished:
		if s.repeat {
			s.startCurrentLocked()
			s.mu.Unlock()
			s.notify()
			return
		}
		s.advanceLocked()
	}
	s.mu.Unlock()

	s.notify()
}

// advanceLocked moves the cursor forward and continues playback or
// finishes the queue.
// Must be called with lock held.
func (s *Session) advanceLocked() {
	if _, ok := s.q.Advance(); ok {
		s.startCurrentLocked()
		return
	}
	s.finishQueueLocked()
}

// finishQueueLocked handles an exhausted queue: autoplay one more track
// or go idle.
// Must be called with lock held.
func (s *Session) finishQueueLocked() {
	if s.autoplay && s.deps.Recommender != nil {
		if s.autoplayRun >= s.cfg.AutoplayCap {
			zlog.Info().Msgf("session: autoplay cap reached, disabling: guild=%s cap=%d", s.guildID, s.cfg.AutoplayCap)
			s.autoplay = false
			s.goIdleLocked()
			return
		}
		s.epoch++
		epoch := s.epoch
		s.status = StatusTransitioning
		exclude := s.queuedTitlesLocked()
		go s.autoplayNext(epoch, exclude)
		return
	}
	s.goIdleLocked()
}

// autoplayNext asks the recommender for one track and continues
// playback with it. Runs without the lock.
func (s *Session) autoplayNext(epoch uint64, exclude []string) {
	cand, err := s.deps.Recommender.NextAutoplay(s.guildID, exclude)

	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if err != nil {
		zlog.Info().Msgf("session: autoplay has no candidates, disabling: guild=%s error=%v", s.guildID, err)
		s.autoplay = false
		s.goIdleLocked()
		s.mu.Unlock()
		s.notify()
		return
	}
	t := track.New(cand.Title, cand.URL, track.SourceAutoplay, track.AutoplayRequester)
	s.q.Append(t)
	s.autoplayRun++
	s.q.Advance()
	s.startCurrentLocked()
	s.mu.Unlock()

	s.notify()
}

// goIdleLocked parks the session and arms the idle timer.
// Must be called with lock held.
func (s *Session) goIdleLocked() {
	s.status = StatusIdle
	s.resetIdleTimerLocked()
}

// stopPipelineLocked detaches and stops the current stream, if any.
// Must be called with lock held.
func (s *Session) stopPipelineLocked() {
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
}

// resetIdleTimerLocked re-arms the idle destruction timer unless audio
// is actively streaming.
// Must be called with lock held.
func (s *Session) resetIdleTimerLocked() {
	s.cancelIdleTimerLocked()
	if s.status == StatusPlaying || s.status == StatusTransitioning {
		return
	}
	s.idleCancel = s.startWallClockTimer(s.cfg.IdleTimeout, s.onIdleTimeout)
}

func (s *Session) cancelIdleTimerLocked() {
	if s.idleCancel != nil {
		s.idleCancel()
		s.idleCancel = nil
	}
}

func (s *Session) cancelTimersLocked() {
	s.cancelIdleTimerLocked()
	if s.aloneCancel != nil {
		s.aloneCancel()
		s.aloneCancel = nil
	}
	if s.graceCancel != nil {
		s.graceCancel()
		s.graceCancel = nil
	}
}

func (s *Session) onIdleTimeout() {
	s.mu.Lock()
	if s.closed || s.status == StatusPlaying || s.status == StatusTransitioning {
		s.mu.Unlock()
		return
	}
	s.idleCancel = nil
	s.mu.Unlock()

	s.Destroy("idle timeout")
}

func (s *Session) onAloneTimeout() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.aloneCancel = nil
	if s.status == StatusPlaying {
		s.handle.Pause()
		s.status = StatusPaused
		s.resetIdleTimerLocked()
	}
	s.graceCancel = s.startWallClockTimer(s.cfg.AloneGrace, func() {
		s.Destroy("alone in voice channel")
	})
	s.mu.Unlock()

	s.notify()
}

// queuedTitlesLocked lists every title in the queue, for recommendation
// exclusion.
// Must be called with lock held.
func (s *Session) queuedTitlesLocked() []string {
	ts := s.q.Tracks()
	titles := make([]string, len(ts))
	for i, t := range ts {
		titles[i] = t.Title
	}
	return titles
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		GuildID:   s.guildID,
		Status:    s.status,
		Repeat:    s.repeat,
		Autoplay:  s.autoplay,
		Volume:    s.volume,
		Tracks:    s.q.Tracks(),
		Cursor:    s.q.Cursor(),
		UpdatedAt: time.Now(),
	}
}

// notify pushes a fresh snapshot to the notifier, if one is configured.
func (s *Session) notify() {
	if s.deps.Notifier == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.deps.Notifier.SessionChanged(snap)
}

// startWallClockTimer triggers callback after duration using wall clock
// time, so suspend/resume of the host does not stretch the timers.
// Returns a cancel function.
func (s *Session) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).After(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime strips the monotonic clock reading so differences use wall
// clock time.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
