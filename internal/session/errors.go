package session

import (
	"errors"

	"github.com/mfeldt/playcore/internal/media"
)

// FaultKind classifies the fatal, session-ending error conditions.
type FaultKind string

const (
	// FaultPlaylistInitializationFailed means the startup playlist fetch
	// exhausted its retry budget.
	FaultPlaylistInitializationFailed FaultKind = "PlaylistInitializationFailed"

	// FaultNoDataTimeout means a track's segment watchdog expired.
	FaultNoDataTimeout FaultKind = "NoDataTimeout"

	// FaultMediaSink means the sink reported a fatal error.
	FaultMediaSink FaultKind = "MediaSinkFatal"
)

// Stable error codes carried on emitted error events.
const (
	CodePlaylistInitializationFailed = 1001
	CodeNoDataTimeout                = 1002
	CodeMediaSinkFatal               = 1003
)

// Error is the payload of an emitted error event.
type Error struct {
	Kind         FaultKind
	Code         int
	Message      string
	PlaybackInfo media.PlaybackInfo
}

func (e Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

var (
	// ErrNotConfigured is returned when StartBuffering runs before Setup.
	ErrNotConfigured = errors.New("session is not configured")

	// ErrInvalidState is returned when a lifecycle call is made from a
	// state that does not permit it.
	ErrInvalidState = errors.New("invalid session state")
)
