package session

import (
	"context"

	"github.com/mfeldt/playcore/internal/fetch"
	"github.com/mfeldt/playcore/internal/media"
)

// SegmentSource supplies segments for one track. Implementations own
// playlist parsing and quality selection; the core only drives the cursor.
type SegmentSource interface {
	// RefreshPlaylist installs a new playlist handle. The session calls
	// this on both tracks' sources back to back; a snapshot never applies
	// to only one track.
	RefreshPlaylist(pl media.TrackPlaylist)

	// NextSegment returns the segment at the cursor without advancing it.
	// A nil segment (or one with an empty payload) means nothing is ready
	// yet; that is not an error.
	NextSegment(ctx context.Context) (*media.SegmentDescriptor, error)

	// Advance moves the cursor past the segment last returned by
	// NextSegment.
	Advance()

	// RemainingSegments reports how many segments are still queued.
	RemainingSegments() int

	// Exhausted reports that the source has no further segments. For VOD
	// this means the asset end has been reached.
	Exhausted() bool

	// NextSegmentStartTime returns the presentation time of the segment
	// at the cursor.
	NextSegmentStartTime() float64
}

// SinkHandle is a per-track buffer handle obtained from the media sink.
type SinkHandle interface {
	SetCodec(mimeType string)
	SetTimelineOffset(offset float64)
	Append(payload []byte) error
	BufferedRanges() media.Ranges
}

// SinkCallbacks carries the collaborator-supplied notifications the
// session wires into state-machine transitions at Setup.
type SinkCallbacks struct {
	OnFatalError func(code int, message string)
	OnEndOfMedia func()
}

// MediaSink is the platform media buffer abstraction. OpenTrack resolves
// only once the sink is in a ready state.
type MediaSink interface {
	Bind(cb SinkCallbacks) error
	OpenTrack(ctx context.Context, mimeType string) (SinkHandle, error)
	Play()
	Position() float64
	SetPosition(pos float64)
	SignalEndOfStream()
	Release()
}

// DRMController owns license acquisition and key lifecycle. The session
// only forwards content-protection metadata and license events.
type DRMController interface {
	CaptureContentProtection(data []byte) error
	OnLicenseMetadata(fn func(data []byte))
}

// PlaylistFetcher is the bounded-retry playlist fetch client.
// *fetch.Client satisfies it.
type PlaylistFetcher interface {
	FetchInitial(ctx context.Context, req fetch.Request) (*media.PlaylistSnapshot, error)
	Refresh(ctx context.Context, req fetch.Request) (*media.PlaylistSnapshot, error)
}

// Listener receives session lifecycle events. All methods are invoked on
// the session's scheduling goroutines and must not block.
type Listener interface {
	OnStreamEnd(info media.PlaybackInfo)
	OnError(e Error)
	OnLicenseMetadata(data []byte)
}
