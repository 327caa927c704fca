package session

import (
	"time"

	"github.com/mfeldt/playcore/internal/media"
)

// State is the playback session lifecycle state. Stopped and Faulted are
// terminal; a new session must be constructed to play again.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateStopped      State = "stopped"
	StateFaulted      State = "faulted"
)

// terminal reports whether the state permits no further transitions.
func (s State) terminal() bool {
	return s == StateStopped || s == StateFaulted
}

// trackState is the per-track bookkeeping owned by the session and mutated
// only on the scheduling timeline after a successful append.
type trackState struct {
	lastFetch       time.Time // wall clock of the last successful append
	lastAppended    *media.SegmentDescriptor
	appended        int64
	discontinuities int64
}

// TrackStats is the host-facing per-track counter snapshot.
type TrackStats struct {
	Appended        int64     `json:"appended"`
	Discontinuities int64     `json:"discontinuities"`
	LastAppendTime  time.Time `json:"last_append_time"`
	BufferLevel     float64   `json:"buffer_level_seconds"`
}

// Stats is a point-in-time snapshot of session counters for host UIs.
type Stats struct {
	State        State                          `json:"state"`
	Position     float64                        `json:"position"`
	TicksSkipped int64                          `json:"ticks_skipped"`
	Tracks       map[media.TrackType]TrackStats `json:"tracks"`
}
