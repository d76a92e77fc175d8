package session

// Status represents the playback status of a guild session.
type Status int

const (
	// StatusIdle means nothing is playing and no transition is underway.
	StatusIdle Status = iota
	// StatusPlaying means audio is streaming to the voice channel.
	StatusPlaying
	// StatusPaused means a track is loaded but frames are not being sent.
	StatusPaused
	// StatusTransitioning means the session is between tracks: resolving
	// a stream URL or starting the audio pipeline.
	StatusTransitioning
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Outcome describes how a pipeline run ended.
type Outcome int

const (
	// OutcomeFinished means the stream played to its natural end.
	OutcomeFinished Outcome = iota
	// OutcomeError means the stream failed mid-play.
	OutcomeError
	// OutcomeStopped means the pipeline was stopped by its owner.
	OutcomeStopped
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeFinished:
		return "finished"
	case OutcomeError:
		return "error"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
