package session

import (
	"context"
	"time"

	"github.com/mfeldt/playcore/internal/log"
	"github.com/mfeldt/playcore/internal/media"
	"github.com/mfeldt/playcore/internal/metrics"
)

// discontinuityTolerance is the forward presentation-time gap above which
// an append is logged as a discontinuity.
const discontinuityTolerance = 0.2

// feedLoop drives the buffer feed task. Ticks are dispatched on their own
// goroutine so the loop keeps draining the ticker; a tick that overruns
// the interval causes the overlapping tick(s) to be skipped by the busy
// guard, never queued.
func (s *Session) feedLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go s.tryFeedTick(ctx)
		}
	}
}

// tryFeedTick enforces at-most-one-in-flight execution of the feed tick.
func (s *Session) tryFeedTick(ctx context.Context) {
	if !s.feedBusy.CompareAndSwap(false, true) {
		s.ticksSkipped.Add(1)
		return
	}
	defer s.feedBusy.Store(false)

	s.feedTick(ctx)
}

// feedTick runs one pass of the buffer feed decision. Video is fully
// resolved before audio; a failure on one track never prevents the other
// from being attempted.
func (s *Session) feedTick(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg
	snapshot := s.snapshot
	handles := s.handles
	lastFetch := map[media.TrackType]time.Time{
		media.TrackVideo: s.tracks[media.TrackVideo].lastFetch,
		media.TrackAudio: s.tracks[media.TrackAudio].lastFetch,
	}
	s.mu.Unlock()
	if handles == nil {
		return
	}

	position := s.deps.Sink.Position()
	remaining := make(map[media.TrackType]float64, len(media.Tracks))
	for _, track := range media.Tracks {
		level := handles[track].BufferedRanges().End() - position
		if level < 0 {
			level = 0
		}
		remaining[track] = level
		metrics.SetBufferLevel(string(track), level)
	}

	s.telemetry.Do(func() {
		s.logger.Debug().
			Str(log.FieldEvent, "feed.telemetry").
			Float64(log.FieldPosition, position).
			Float64("video_buffer", remaining[media.TrackVideo]).
			Float64("audio_buffer", remaining[media.TrackAudio]).
			Int64("ticks_skipped", s.ticksSkipped.Load()).
			Msg("feed state")
	})

	// End of stream: a VOD asset with a drained source has nothing left
	// to fetch.
	if !snapshot.IsLive && snapshot.Duration > 0 {
		if s.deps.Sources[media.TrackVideo].Exhausted() || s.deps.Sources[media.TrackAudio].Exhausted() {
			s.signalEndOfStream()
			return
		}
	}

	// Watchdog: either track's staleness is sufficient to fault.
	now := s.clock()
	for _, track := range media.Tracks {
		if elapsed := now.Sub(lastFetch[track]); elapsed > cfg.SegmentWatchdogTimeout {
			s.fault(FaultNoDataTimeout, CodeNoDataTimeout,
				"no segment appended on "+string(track)+" track for "+elapsed.Truncate(time.Millisecond).String())
			return
		}
	}

	s.maybeRefreshPlaylist(ctx, remaining)

	for _, track := range media.Tracks {
		if remaining[track] >= cfg.MaxBufferDuration {
			continue
		}
		if err := s.feedTrack(ctx, track); err != nil {
			metrics.RecordSegmentError(string(track))
			s.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "feed.track_error").
				Str(log.FieldTrack, string(track)).
				Msg("segment fetch/append failed, next tick retries")
		}
	}
}

// feedTrack fetches and appends the next segment of one track.
func (s *Session) feedTrack(ctx context.Context, track media.TrackType) error {
	source := s.deps.Sources[track]

	seg, err := source.NextSegment(ctx)
	if err != nil {
		return err
	}
	if seg == nil || len(seg.Payload) == 0 {
		// Source has nothing ready yet; not an error.
		return nil
	}

	s.mu.Lock()
	handle := s.handles[track]
	prev := s.tracks[track].lastAppended
	s.mu.Unlock()
	if handle == nil {
		return nil
	}

	if seg.IncludesInitSegment {
		codec := normalizeCodec(seg.Codecs)
		handle.SetCodec(mimeType(track, codec))
		s.logger.Info().
			Str(log.FieldEvent, "feed.codec_switch").
			Str(log.FieldTrack, string(track)).
			Str(log.FieldCodec, codec).
			Msg("sink content type switched")
	}

	discontinuity := prev != nil && seg.PresentationTime > prev.End()+discontinuityTolerance
	if discontinuity {
		metrics.RecordDiscontinuity(string(track))
		s.logger.Warn().
			Str(log.FieldEvent, "feed.discontinuity").
			Str(log.FieldTrack, string(track)).
			Float64("previous_end", prev.End()).
			Float64("segment_start", seg.PresentationTime).
			Msg("presentation time does not follow previous segment")
	}

	handle.SetTimelineOffset(float64(seg.TimelineID))
	if err := handle.Append(seg.Payload); err != nil {
		return err
	}

	// Discard the result if the session was stopped while the append was
	// in flight.
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil
	}
	ts := s.tracks[track]
	ts.lastFetch = s.clock()
	ts.lastAppended = seg
	ts.appended++
	if discontinuity {
		ts.discontinuities++
	}
	s.mu.Unlock()

	source.Advance()
	metrics.RecordAppend(string(track))
	return nil
}

// signalEndOfStream tells the sink no further data is coming, exactly once.
func (s *Session) signalEndOfStream() {
	s.mu.Lock()
	if s.eosSignalled {
		s.mu.Unlock()
		return
	}
	s.eosSignalled = true
	s.mu.Unlock()

	s.deps.Sink.SignalEndOfStream()
	metrics.EndOfStreamTotal.Inc()
	s.logger.Info().Str(log.FieldEvent, "feed.eos").Msg("end of stream signalled")
}

// normalizeCodec rewrites the bare hvc1 identifier to a fully qualified
// profile string; some decoders cannot identify the stream otherwise.
func normalizeCodec(codecs string) string {
	if codecs == "hvc1" {
		return "hvc1.1.6.L63.90"
	}
	return codecs
}
