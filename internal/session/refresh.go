package session

import (
	"context"
	"math"

	"github.com/mfeldt/playcore/internal/fetch"
	"github.com/mfeldt/playcore/internal/log"
	"github.com/mfeldt/playcore/internal/media"
	"github.com/mfeldt/playcore/internal/metrics"
)

// maybeRefreshPlaylist decides once per feed tick whether a new playlist
// window is due and requests it with a single attempt. Refresh failures
// keep the existing playlist state; the next tick retries if conditions
// still warrant it.
func (s *Session) maybeRefreshPlaylist(ctx context.Context, remaining map[media.TrackType]float64) {
	s.mu.Lock()
	cfg := s.cfg
	lastVideo := s.tracks[media.TrackVideo].lastAppended
	lastAudio := s.tracks[media.TrackAudio].lastAppended
	s.mu.Unlock()

	// No refresh before a fetch baseline exists on both tracks; a
	// persistent initial-fetch failure must surface as a stall, not be
	// masked as a playlist-needs-refresh condition.
	if lastVideo == nil || lastAudio == nil {
		return
	}

	videoPct := remaining[media.TrackVideo] / cfg.MaxBufferDuration * 100
	audioPct := remaining[media.TrackAudio] / cfg.MaxBufferDuration * 100
	if math.Min(videoPct, audioPct) >= cfg.RefreshBufferPercentageThreshold {
		return
	}

	if s.deps.Sources[media.TrackVideo].RemainingSegments() >= cfg.MinDesiredFutureSegments &&
		s.deps.Sources[media.TrackAudio].RemainingSegments() >= cfg.MinDesiredFutureSegments {
		return
	}

	snapshot, err := s.deps.Fetcher.Refresh(ctx, fetch.Request{
		AssetURL:     cfg.AssetURL,
		MaxDuration:  cfg.MaxBufferDuration,
		MinBandwidth: cfg.MinBandwidth,
		MaxBandwidth: cfg.MaxBandwidth,
		DeviceID:     s.deviceID,
		ConnectionID: s.connectionID,
		Canary:       cfg.UseCanary,
		Continuity: map[media.TrackType]fetch.Continuity{
			media.TrackVideo: {PresentationTime: lastVideo.PresentationTime, TimelineID: lastVideo.TimelineID},
			media.TrackAudio: {PresentationTime: lastAudio.PresentationTime, TimelineID: lastAudio.TimelineID},
		},
	})
	if err != nil {
		metrics.RecordRefresh("failure")
		s.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "refresh.failed").
			Msg("playlist refresh failed, keeping current playlist")
		return
	}
	if err := snapshot.Validate(); err != nil {
		metrics.RecordRefresh("failure")
		s.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "refresh.invalid").
			Msg("playlist refresh returned incomplete snapshot")
		return
	}

	if !s.installSnapshot(snapshot) {
		// Session reached a terminal state while the refresh was in
		// flight; the result is discarded.
		return
	}
	metrics.RecordRefresh("success")
	s.logger.Info().
		Str(log.FieldEvent, "refresh.success").
		Bool("live", snapshot.IsLive).
		Float64("time_shift_depth", snapshot.TimeShiftBufferDepth).
		Msg("playlist window refreshed")
}
