package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPlaybackInfoVOD(t *testing.T) {
	snap := &PlaylistSnapshot{Duration: 120}
	info := NewPlaybackInfo("https://example.com/asset", snap, 42.5, time.Now())

	assert.Equal(t, AssetVOD, info.AssetType)
	assert.Equal(t, 120.0, info.AssetDuration)
	assert.Equal(t, 0.0, info.AssetStart)
	assert.Equal(t, 120.0, info.AssetEnd)
	assert.Equal(t, 42.5, info.CurrentPosition)
}

func TestNewPlaybackInfoLive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	wallclock := float64(now.UnixMilli()) / 1000.0

	snap := &PlaylistSnapshot{
		IsLive:                     true,
		TimeShiftBufferDepth:       600,
		SuggestedPresentationDelay: 12,
	}
	info := NewPlaybackInfo("https://example.com/live", snap, 0, now)

	assert.Equal(t, AssetLive, info.AssetType)
	assert.Equal(t, -1.0, info.AssetDuration)
	assert.InDelta(t, wallclock-600, info.AssetStart, 0.001)
	assert.InDelta(t, wallclock-12, info.AssetEnd, 0.001)
}

func TestNewPlaybackInfoLiveUnknownWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	wallclock := float64(now.UnixMilli()) / 1000.0

	snap := &PlaylistSnapshot{
		IsLive:                     true,
		TimeShiftBufferDepth:       -1,
		SuggestedPresentationDelay: -1,
	}
	info := NewPlaybackInfo("https://example.com/live", snap, 0, now)

	assert.Equal(t, -1.0, info.AssetStart)
	assert.InDelta(t, wallclock, info.AssetEnd, 0.001)
}

func TestSnapshotValidate(t *testing.T) {
	snap := &PlaylistSnapshot{Tracks: map[TrackType]TrackPlaylist{
		TrackVideo: {Track: TrackVideo},
	}}
	assert.Error(t, snap.Validate())

	snap.Tracks[TrackAudio] = TrackPlaylist{Track: TrackAudio}
	assert.NoError(t, snap.Validate())
}
