// Package session implements the playback orchestration core: a state
// machine that keeps two media tracks buffered against remote segment
// sources, refreshes the playlist when the forward window runs low,
// watches for stalled appends and recovers the playhead from buffer gaps.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mfeldt/playcore/internal/config"
	"github.com/mfeldt/playcore/internal/fetch"
	"github.com/mfeldt/playcore/internal/log"
	"github.com/mfeldt/playcore/internal/media"
	"github.com/mfeldt/playcore/internal/metrics"
)

const telemetryInterval = 5 * time.Second

// Deps bundles the collaborators a session is constructed with.
type Deps struct {
	Sink     MediaSink
	Sources  map[media.TrackType]SegmentSource
	DRM      DRMController
	Fetcher  PlaylistFetcher
	Listener Listener // optional
}

// Validate checks that all required collaborators are present.
func (d Deps) Validate() error {
	if d.Sink == nil {
		return fmt.Errorf("media sink is required")
	}
	for _, track := range media.Tracks {
		if d.Sources[track] == nil {
			return fmt.Errorf("segment source for track %q is required", track)
		}
	}
	if d.DRM == nil {
		return fmt.Errorf("drm controller is required")
	}
	if d.Fetcher == nil {
		return fmt.Errorf("playlist fetcher is required")
	}
	return nil
}

// Session is the top-level playback orchestrator. One process may host
// multiple independent sessions; a session is single-use.
type Session struct {
	id           string
	deviceID     string
	connectionID string

	deps   Deps
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	configured bool
	cfg        config.Playback
	snapshot   *media.PlaylistSnapshot
	handles    map[media.TrackType]SinkHandle
	tracks     map[media.TrackType]*trackState

	feedBusy     atomic.Bool
	ticksSkipped atomic.Int64
	eosSignalled bool
	released     bool

	cancel context.CancelFunc
	done   chan struct{}

	telemetry rate.Sometimes

	// clock is swapped in watchdog tests.
	clock func() time.Time
}

// New constructs an idle session around the given collaborators.
func New(deps Deps) (*Session, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	id := uuid.NewString()
	s := &Session{
		id:           id,
		deviceID:     uuid.NewString(),
		connectionID: uuid.NewString(),
		deps:         deps,
		logger:       log.WithSession("session", id),
		state:        StateIdle,
		tracks: map[media.TrackType]*trackState{
			media.TrackVideo: {},
			media.TrackAudio: {},
		},
		telemetry: rate.Sometimes{Interval: telemetryInterval},
		clock:     time.Now,
	}
	return s, nil
}

// Setup validates and stores the configuration and wires the sink and DRM
// notifications into state-machine transitions. It has no external side
// effect besides acquiring the sink binding.
func (s *Session) Setup(cfg config.Playback) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	s.mu.Lock()
	if s.state != StateIdle || s.configured {
		s.mu.Unlock()
		return fmt.Errorf("%w: setup requires a fresh session", ErrInvalidState)
	}
	s.cfg = cfg
	s.configured = true
	s.mu.Unlock()

	if err := s.deps.Sink.Bind(SinkCallbacks{
		OnFatalError: s.onSinkFatal,
		OnEndOfMedia: s.onEndOfMedia,
	}); err != nil {
		return fmt.Errorf("setup: bind media sink: %w", err)
	}

	s.deps.DRM.OnLicenseMetadata(func(data []byte) {
		if s.deps.Listener != nil {
			s.deps.Listener.OnLicenseMetadata(data)
		}
	})

	s.logger.Debug().Str(log.FieldEvent, "session.setup").Msg("session configured")
	return nil
}

// StartBuffering fetches the initial playlist snapshot, opens the sink
// tracks and starts the feed and gap-recovery tasks. On success the
// session is Active.
func (s *Session) StartBuffering(ctx context.Context) error {
	s.mu.Lock()
	if !s.configured {
		s.mu.Unlock()
		return ErrNotConfigured
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: start requires state %s, have %s", ErrInvalidState, StateIdle, s.state)
	}
	s.setStateLocked(StateInitializing)
	cfg := s.cfg
	s.mu.Unlock()

	snapshot, err := s.deps.Fetcher.FetchInitial(ctx, fetch.Request{
		AssetURL:        cfg.AssetURL,
		MaxDuration:     cfg.MaxBufferDuration,
		MinBandwidth:    cfg.MinBandwidth,
		MaxBandwidth:    cfg.MaxBandwidth,
		InitialPosition: cfg.InitialPosition,
		DeviceID:        s.deviceID,
		ConnectionID:    s.connectionID,
		Canary:          cfg.UseCanary,
	})
	if err != nil {
		s.fault(FaultPlaylistInitializationFailed, CodePlaylistInitializationFailed, err.Error())
		return fmt.Errorf("start buffering: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		s.fault(FaultPlaylistInitializationFailed, CodePlaylistInitializationFailed, err.Error())
		return fmt.Errorf("start buffering: %w", err)
	}

	if !s.installSnapshot(snapshot) {
		return fmt.Errorf("%w: session stopped during initialization", ErrInvalidState)
	}

	if len(snapshot.ContentProtection) > 0 {
		if err := s.deps.DRM.CaptureContentProtection(snapshot.ContentProtection); err != nil {
			s.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "drm.capture_failed").
				Msg("content protection capture failed")
		}
	}

	handles := make(map[media.TrackType]SinkHandle, len(media.Tracks))
	for _, track := range media.Tracks {
		handle, err := s.deps.Sink.OpenTrack(ctx, mimeType(track, snapshot.Tracks[track].Codecs))
		if err != nil {
			s.fault(FaultMediaSink, CodeMediaSinkFatal, err.Error())
			return fmt.Errorf("start buffering: open %s track: %w", track, err)
		}
		handles[track] = handle
	}

	// Start at the later of the two first segment start times so playback
	// does not stall waiting for the slower track to catch up.
	start := s.deps.Sources[media.TrackVideo].NextSegmentStartTime()
	if audioStart := s.deps.Sources[media.TrackAudio].NextSegmentStartTime(); audioStart > start {
		start = audioStart
	}
	s.deps.Sink.SetPosition(start)

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	// Stop or a sink fault may have landed while the fetch or the track
	// opens were in flight; a terminal state must not be revived.
	if s.state != StateInitializing {
		state := s.state
		s.mu.Unlock()
		cancel()
		s.deps.Sink.Release()
		return fmt.Errorf("%w: session is %s, startup abandoned", ErrInvalidState, state)
	}
	s.handles = handles
	now := s.clock()
	for _, ts := range s.tracks {
		ts.lastFetch = now
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setStateLocked(StateActive)
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.logger.Info().
		Str(log.FieldEvent, "session.active").
		Float64(log.FieldPosition, start).
		Bool("live", snapshot.IsLive).
		Msg("buffering started")

	g, gctx := errgroup.WithContext(taskCtx)
	g.Go(func() error {
		s.feedLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.gapLoop(gctx)
		return nil
	})
	go func() {
		_ = g.Wait()
		close(s.done)
	}()

	return nil
}

// Play delegates playback start to the media sink. No state change.
func (s *Session) Play() {
	s.deps.Sink.Play()
}

// Stop cancels both periodic tasks, signals end of stream if the sink is
// still open, resets the playhead and releases the track handles. It is
// idempotent and safe to call from any state, including from within an
// error or end-of-media callback.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	wasActive := s.state == StateActive
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	if wasActive {
		metrics.ActiveSessions.Dec()
	}
	s.teardown(true)
}

// Done is closed once both periodic tasks have exited. It is nil before
// StartBuffering succeeds.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GetPlaybackInfo returns the host-facing position and seek-window
// snapshot for the current playlist state.
func (s *Session) GetPlaybackInfo() media.PlaybackInfo {
	s.mu.Lock()
	snapshot := s.snapshot
	url := s.cfg.AssetURL
	s.mu.Unlock()

	return media.NewPlaybackInfo(url, snapshot, s.deps.Sink.Position(), s.clock())
}

// Stats returns a point-in-time counter snapshot for host UIs.
func (s *Session) Stats() Stats {
	position := s.deps.Sink.Position()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		State:        s.state,
		Position:     position,
		TicksSkipped: s.ticksSkipped.Load(),
		Tracks:       make(map[media.TrackType]TrackStats, len(s.tracks)),
	}
	for track, ts := range s.tracks {
		stats := TrackStats{
			Appended:        ts.appended,
			Discontinuities: ts.discontinuities,
			LastAppendTime:  ts.lastFetch,
		}
		if handle := s.handles[track]; handle != nil {
			if level := handle.BufferedRanges().End() - position; level > 0 {
				stats.BufferLevel = level
			}
		}
		st.Tracks[track] = stats
	}
	return st
}

// installSnapshot applies a playlist snapshot to both track sources and
// records it as the current playlist state. A snapshot never applies to
// only one track. A snapshot arriving after the session reached a
// terminal state is discarded; the false return reports that.
func (s *Session) installSnapshot(snapshot *media.PlaylistSnapshot) bool {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return false
	}
	s.snapshot = snapshot
	s.mu.Unlock()

	for _, track := range media.Tracks {
		s.deps.Sources[track].RefreshPlaylist(snapshot.Tracks[track])
	}
	return true
}

// fault moves the session to Faulted, tears it down and emits the error
// event. Component-local errors never reach this path; only the three
// fatal conditions do.
func (s *Session) fault(kind FaultKind, code int, message string) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	wasActive := s.state == StateActive
	s.setStateLocked(StateFaulted)
	s.mu.Unlock()

	if wasActive {
		metrics.ActiveSessions.Dec()
	}
	metrics.RecordFault(string(kind))
	s.logger.Error().
		Str(log.FieldEvent, "session.fault").
		Str("kind", string(kind)).
		Int("code", code).
		Msg(message)

	info := s.GetPlaybackInfo()
	s.teardown(false)

	if s.deps.Listener != nil {
		s.deps.Listener.OnError(Error{Kind: kind, Code: code, Message: message, PlaybackInfo: info})
	}
}

// teardown cancels the periodic tasks and releases the sink. It never
// blocks on in-flight ticks; their results are discarded by the state
// re-check in the feed path.
func (s *Session) teardown(signalEos bool) {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	alreadyReleased := s.released
	s.released = true
	sendEos := signalEos && s.handles != nil && !s.eosSignalled
	if sendEos {
		s.eosSignalled = true
	}
	s.handles = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if alreadyReleased {
		return
	}
	if sendEos {
		s.deps.Sink.SignalEndOfStream()
		metrics.EndOfStreamTotal.Inc()
	}
	s.deps.Sink.SetPosition(0)
	s.deps.Sink.Release()
	s.logger.Info().Str(log.FieldEvent, "session.teardown").Msg("session released")
}

// onSinkFatal is the sink's fatal-error notification.
func (s *Session) onSinkFatal(code int, message string) {
	s.fault(FaultMediaSink, code, message)
}

// onEndOfMedia is the sink's end-of-media notification.
func (s *Session) onEndOfMedia() {
	info := s.GetPlaybackInfo()

	s.mu.Lock()
	terminal := s.state.terminal()
	s.mu.Unlock()
	if terminal {
		return
	}

	s.logger.Info().Str(log.FieldEvent, "session.streamend").Msg("end of media reached")
	if s.deps.Listener != nil {
		s.deps.Listener.OnStreamEnd(info)
	}
	s.Stop()
}

func (s *Session) setStateLocked(next State) {
	old := s.state
	s.state = next
	s.logger.Debug().
		Str(log.FieldEvent, "session.state").
		Str(log.FieldOldState, string(old)).
		Str(log.FieldNewState, string(next)).
		Msg("state transition")
}

// mimeType builds the sink content type for a track's codec identifier.
func mimeType(track media.TrackType, codecs string) string {
	return fmt.Sprintf("%s/mp4; codecs=\"%s\"", track, codecs)
}
