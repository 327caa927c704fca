// Package media defines the shared data model of the playback core:
// tracks, segments, playlist snapshots and buffered-range arithmetic.
package media

import "fmt"

// TrackType identifies one of the two media tracks a session feeds.
type TrackType string

const (
	TrackAudio TrackType = "audio"
	TrackVideo TrackType = "video"
)

// Tracks lists all track types in processing order. Video is always
// resolved before audio within one feed pass.
var Tracks = [2]TrackType{TrackVideo, TrackAudio}

// AssetType distinguishes fixed-duration assets from live streams.
type AssetType string

const (
	AssetVOD  AssetType = "vod"
	AssetLive AssetType = "live"
)

// SegmentDescriptor is a discrete chunk of encoded media produced by a
// segment source. It is immutable once produced and consumed exactly once.
type SegmentDescriptor struct {
	TimelineID          int
	PresentationTime    float64 // seconds
	Duration            float64 // seconds
	Codecs              string
	Payload             []byte
	IncludesInitSegment bool
}

// End returns the presentation time at which the segment ends.
func (s SegmentDescriptor) End() float64 {
	return s.PresentationTime + s.Duration
}

// TrackPlaylist is the per-track playlist handle carried by a snapshot.
// The core treats it as opaque; segment sources interpret it.
type TrackPlaylist struct {
	Track   TrackType
	URL     string
	Codecs  string
	Payload []byte
}

// PlaylistSnapshot is the result of a playlist fetch. It must be installed
// into both track segment sources atomically; a refresh never applies to
// only one track.
type PlaylistSnapshot struct {
	IsLive                     bool
	Duration                   float64 // total asset duration in seconds; 0 when unknown (live)
	TimeShiftBufferDepth       float64 // seconds; <0 when unknown
	SuggestedPresentationDelay float64 // seconds; <0 when unknown
	Tracks                     map[TrackType]TrackPlaylist
	ContentProtection          []byte // opaque DRM metadata, may be nil
}

// AssetType derives the asset type from the live flag.
func (p *PlaylistSnapshot) AssetType() AssetType {
	if p.IsLive {
		return AssetLive
	}
	return AssetVOD
}

// Validate checks that the snapshot carries a playlist for every track.
func (p *PlaylistSnapshot) Validate() error {
	for _, track := range Tracks {
		if _, ok := p.Tracks[track]; !ok {
			return fmt.Errorf("playlist snapshot is missing track %q", track)
		}
	}
	return nil
}
