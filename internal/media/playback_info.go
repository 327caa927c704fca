package media

import "time"

// PlaybackInfo is the host-facing position/window snapshot carried by every
// emitted event. It supports seek-range UI without exposing buffer state.
type PlaybackInfo struct {
	PlaybackURL     string    `json:"playback_url"`
	AssetType       AssetType `json:"asset_type"`
	CurrentPosition float64   `json:"current_position"`
	AssetDuration   float64   `json:"asset_duration"` // -1 for live
	AssetStart      float64   `json:"asset_start"`    // -1 when unknown
	AssetEnd        float64   `json:"asset_end"`
}

// NewPlaybackInfo computes the seekable window for the given snapshot.
// VOD: the window is [0, duration]. Live: duration is -1, the window start
// is now-timeShiftBufferDepth (or -1 when the depth is unknown) and the
// window end is now-suggestedPresentationDelay (or now when unknown).
func NewPlaybackInfo(url string, snapshot *PlaylistSnapshot, position float64, now time.Time) PlaybackInfo {
	info := PlaybackInfo{
		PlaybackURL:     url,
		CurrentPosition: position,
	}
	if snapshot == nil {
		info.AssetType = AssetVOD
		info.AssetDuration = -1
		info.AssetStart = -1
		return info
	}

	info.AssetType = snapshot.AssetType()
	if !snapshot.IsLive {
		info.AssetDuration = snapshot.Duration
		info.AssetStart = 0
		info.AssetEnd = snapshot.Duration
		return info
	}

	wallclock := float64(now.UnixMilli()) / 1000.0
	info.AssetDuration = -1
	if snapshot.TimeShiftBufferDepth >= 0 {
		info.AssetStart = wallclock - snapshot.TimeShiftBufferDepth
	} else {
		info.AssetStart = -1
	}
	if snapshot.SuggestedPresentationDelay >= 0 {
		info.AssetEnd = wallclock - snapshot.SuggestedPresentationDelay
	} else {
		info.AssetEnd = wallclock
	}
	return info
}
