package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mfeldt/playcore/internal/config"
	"github.com/mfeldt/playcore/internal/media"
	"github.com/mfeldt/playcore/internal/session"
	"github.com/mfeldt/playcore/internal/stub"
)

// soakListener records session lifecycle events for assertions.
type soakListener struct {
	mu         sync.Mutex
	streamEnds int
	errors     []session.Error
	licenses   int
}

func (l *soakListener) OnStreamEnd(media.PlaybackInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streamEnds++
}

func (l *soakListener) OnError(e session.Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, e)
}

func (l *soakListener) OnLicenseMetadata([]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.licenses++
}

func (l *soakListener) snapshot() (int, []session.Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	errs := make([]session.Error, len(l.errors))
	copy(errs, l.errors)
	return l.streamEnds, errs
}

// pipeline bundles one session with its stub collaborators.
type pipeline struct {
	session  *session.Session
	sink     *stub.Sink
	fetcher  *stub.Fetcher
	listener *soakListener
	video    *stub.Source
	audio    *stub.Source
}

type pipelineConfig struct {
	live            bool
	segments        int // per track; 0 means unbounded
	segmentDuration float64
	failRate        float64
	emptyRate       float64
	refreshFailRate float64
	seed            int64
	playback        config.Playback
}

func buildPipeline(pc pipelineConfig) (*pipeline, error) {
	video := stub.NewSource(stub.SourceConfig{
		Track:           media.TrackVideo,
		SegmentDuration: pc.segmentDuration,
		TotalSegments:   pc.segments,
		Codecs:          "avc1.640028",
		FailRate:        pc.failRate,
		EmptyRate:       pc.emptyRate,
		Seed:            pc.seed,
	})
	audio := stub.NewSource(stub.SourceConfig{
		Track:           media.TrackAudio,
		SegmentDuration: pc.segmentDuration,
		TotalSegments:   pc.segments,
		Codecs:          "mp4a.40.2",
		FailRate:        pc.failRate,
		EmptyRate:       pc.emptyRate,
		Seed:            pc.seed + 1,
	})

	snapshot := media.PlaylistSnapshot{
		IsLive: pc.live,
		Tracks: map[media.TrackType]media.TrackPlaylist{
			media.TrackVideo: {Track: media.TrackVideo, Codecs: "avc1.640028"},
			media.TrackAudio: {Track: media.TrackAudio, Codecs: "mp4a.40.2"},
		},
	}
	if pc.live {
		snapshot.TimeShiftBufferDepth = 30
		snapshot.SuggestedPresentationDelay = 6
	} else {
		snapshot.Duration = float64(pc.segments) * pc.segmentDuration
	}

	sink := stub.NewSink()
	fetcher := stub.NewFetcher(stub.FetcherConfig{
		Snapshot:        snapshot,
		RefreshFailRate: pc.refreshFailRate,
		Seed:            pc.seed + 2,
	})
	listener := &soakListener{}

	s, err := session.New(session.Deps{
		Sink: sink,
		Sources: map[media.TrackType]session.SegmentSource{
			media.TrackVideo: video,
			media.TrackAudio: audio,
		},
		DRM:      stub.NewDRM(),
		Fetcher:  fetcher,
		Listener: listener,
	})
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}
	if err := s.Setup(pc.playback); err != nil {
		return nil, fmt.Errorf("setup session: %w", err)
	}

	return &pipeline{
		session:  s,
		sink:     sink,
		fetcher:  fetcher,
		listener: listener,
		video:    video,
		audio:    audio,
	}, nil
}

func basePlayback(cfg Config) config.Playback {
	pb := cfg.Base
	if pb.AssetURL == "" {
		pb = config.Defaults()
		pb.AssetURL = "stub://asset"
	}
	pb.FeedInterval = cfg.FeedInterval
	pb.GapCheckInterval = 50 * time.Millisecond
	return pb
}

// consume advances the sink playhead at the given media-seconds-per-tick
// rate until the context ends, simulating decoder consumption.
func consume(ctx context.Context, sink *stub.Sink, perTick float64) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink.Advance(perTick)
		}
	}
}

// runVODCompletion plays a bounded asset to the end and checks that the
// session signals end of stream exactly once and stops cleanly.
func runVODCompletion(cfg Config) ScenarioResult {
	result := ScenarioResult{Name: "vod_completion", Observations: map[string]int64{}}
	fail := func(rule, format string, args ...any) {
		result.Failures = append(result.Failures, Failure{
			Time:    time.Now(),
			RuleID:  rule,
			Message: fmt.Sprintf(format, args...),
		})
	}

	p, err := buildPipeline(pipelineConfig{
		segments:        cfg.Segments,
		segmentDuration: cfg.SegmentDuration,
		seed:            cfg.Seed,
		playback:        basePlayback(cfg),
	})
	if err != nil {
		fail("VOD-SETUP", "%v", err)
		return result
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	if err := p.session.StartBuffering(ctx); err != nil {
		fail("VOD-START", "start buffering: %v", err)
		return result
	}
	p.session.Play()

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	go consume(consumeCtx, p.sink, cfg.SegmentDuration/4)

	// Wait for the session to run the asset to its end, then deliver the
	// platform's end-of-media notification.
	duration := float64(cfg.Segments) * cfg.SegmentDuration
	for {
		if p.sink.EndOfStream() && p.sink.Position() >= duration {
			break
		}
		if ctx.Err() != nil {
			fail("VOD-EOS", "end of stream not signalled within %s", cfg.Duration)
			stopConsumer()
			p.session.Stop()
			<-p.session.Done()
			return result
		}
		time.Sleep(10 * time.Millisecond)
	}
	stopConsumer()
	p.sink.InjectEndOfMedia()

	select {
	case <-p.session.Done():
	case <-ctx.Done():
		fail("VOD-STOP", "session did not stop after end of media")
		return result
	}

	stats := p.session.Stats()
	streamEnds, errs := p.listener.snapshot()
	result.Observations["video_appended"] = stats.Tracks[media.TrackVideo].Appended
	result.Observations["audio_appended"] = stats.Tracks[media.TrackAudio].Appended
	result.Observations["stream_ends"] = int64(streamEnds)

	if state := p.session.State(); state != session.StateStopped {
		fail("VOD-STATE", "expected stopped, got %s", state)
	}
	if streamEnds != 1 {
		fail("VOD-END-ONCE", "expected one stream-end event, got %d", streamEnds)
	}
	if len(errs) != 0 {
		fail("VOD-NO-ERRORS", "unexpected errors: %v", errs)
	}
	for _, track := range media.Tracks {
		if got := stats.Tracks[track].Appended; got != int64(cfg.Segments) {
			fail("VOD-COMPLETE", "track %s appended %d of %d segments", track, got, cfg.Segments)
		}
	}

	result.Pass = len(result.Failures) == 0
	return result
}

// runLiveRefresh runs an unbounded live pipeline and checks that playlist
// refreshes happen while the session keeps feeding.
func runLiveRefresh(cfg Config) ScenarioResult {
	result := ScenarioResult{Name: "live_refresh", Observations: map[string]int64{}}
	fail := func(rule, format string, args ...any) {
		result.Failures = append(result.Failures, Failure{
			Time:    time.Now(),
			RuleID:  rule,
			Message: fmt.Sprintf(format, args...),
		})
	}

	pb := basePlayback(cfg)
	// A live window always wants freshness: disable the queued-segment
	// skip so refresh cadence is governed by buffer fill alone.
	pb.MinDesiredFutureSegments = 1 << 21
	pb.RefreshBufferPercentageThreshold = 100

	p, err := buildPipeline(pipelineConfig{
		live:            true,
		segmentDuration: cfg.SegmentDuration,
		seed:            cfg.Seed,
		playback:        pb,
	})
	if err != nil {
		fail("LIVE-SETUP", "%v", err)
		return result
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.session.StartBuffering(ctx); err != nil {
		fail("LIVE-START", "start buffering: %v", err)
		return result
	}
	p.session.Play()
	go consume(ctx, p.sink, cfg.SegmentDuration/4)

	time.Sleep(cfg.Duration)

	stats := p.session.Stats()
	_, errs := p.listener.snapshot()
	result.Observations["video_appended"] = stats.Tracks[media.TrackVideo].Appended
	result.Observations["audio_appended"] = stats.Tracks[media.TrackAudio].Appended
	result.Observations["refreshes"] = int64(p.fetcher.RefreshCalls())
	result.Observations["ticks_skipped"] = stats.TicksSkipped

	if state := p.session.State(); state != session.StateActive {
		fail("LIVE-STATE", "expected active, got %s", state)
	}
	if p.fetcher.RefreshCalls() == 0 {
		fail("LIVE-REFRESH", "no playlist refresh happened in %s", cfg.Duration)
	}
	for _, track := range media.Tracks {
		if stats.Tracks[track].Appended == 0 {
			fail("LIVE-FEED", "track %s never appended", track)
		}
	}
	if len(errs) != 0 {
		fail("LIVE-NO-ERRORS", "unexpected errors: %v", errs)
	}

	cancel()
	p.session.Stop()
	<-p.session.Done()

	result.Pass = len(result.Failures) == 0
	return result
}

// runChaosInjection runs a live pipeline with injected fetch failures,
// empty responses and refresh failures, and checks the session absorbs
// them without faulting.
func runChaosInjection(cfg Config) ScenarioResult {
	result := ScenarioResult{Name: "chaos_injection", Observations: map[string]int64{}}
	fail := func(rule, format string, args ...any) {
		result.Failures = append(result.Failures, Failure{
			Time:    time.Now(),
			RuleID:  rule,
			Message: fmt.Sprintf(format, args...),
		})
	}

	pb := basePlayback(cfg)
	pb.SegmentWatchdogTimeout = cfg.Duration + 30*time.Second

	p, err := buildPipeline(pipelineConfig{
		live:            true,
		segmentDuration: cfg.SegmentDuration,
		failRate:        cfg.FailRate,
		emptyRate:       cfg.EmptyRate,
		refreshFailRate: cfg.RefreshFailRate,
		seed:            cfg.Seed,
		playback:        pb,
	})
	if err != nil {
		fail("CHAOS-SETUP", "%v", err)
		return result
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.session.StartBuffering(ctx); err != nil {
		fail("CHAOS-START", "start buffering: %v", err)
		return result
	}
	p.session.Play()
	go consume(ctx, p.sink, cfg.SegmentDuration/4)

	time.Sleep(cfg.Duration)

	stats := p.session.Stats()
	_, errs := p.listener.snapshot()
	result.Observations["video_appended"] = stats.Tracks[media.TrackVideo].Appended
	result.Observations["audio_appended"] = stats.Tracks[media.TrackAudio].Appended
	result.Observations["refreshes"] = int64(p.fetcher.RefreshCalls())

	if state := p.session.State(); state != session.StateActive {
		fail("CHAOS-STATE", "expected active under chaos, got %s", state)
	}
	for _, track := range media.Tracks {
		if stats.Tracks[track].Appended == 0 {
			fail("CHAOS-FEED", "track %s never appended", track)
		}
	}
	if len(errs) != 0 {
		fail("CHAOS-NO-FAULT", "unexpected fatal errors: %v", errs)
	}

	cancel()
	p.session.Stop()
	<-p.session.Done()

	result.Pass = len(result.Failures) == 0
	return result
}

// runWatchdogFault starves the session of segments and checks that the
// watchdog faults it with the no-data error.
func runWatchdogFault(cfg Config) ScenarioResult {
	result := ScenarioResult{Name: "watchdog_fault", Observations: map[string]int64{}}
	fail := func(rule, format string, args ...any) {
		result.Failures = append(result.Failures, Failure{
			Time:    time.Now(),
			RuleID:  rule,
			Message: fmt.Sprintf(format, args...),
		})
	}

	pb := basePlayback(cfg)
	pb.SegmentWatchdogTimeout = 200 * time.Millisecond

	p, err := buildPipeline(pipelineConfig{
		live:            true,
		segmentDuration: cfg.SegmentDuration,
		failRate:        1, // sources never produce
		seed:            cfg.Seed,
		playback:        pb,
	})
	if err != nil {
		fail("WDOG-SETUP", "%v", err)
		return result
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.session.StartBuffering(ctx); err != nil {
		fail("WDOG-START", "start buffering: %v", err)
		return result
	}

	select {
	case <-p.session.Done():
	case <-time.After(10 * time.Second):
		fail("WDOG-TIMEOUT", "watchdog did not fault a starved session")
		p.session.Stop()
		<-p.session.Done()
		return result
	}

	_, errs := p.listener.snapshot()
	result.Observations["errors"] = int64(len(errs))

	if state := p.session.State(); state != session.StateFaulted {
		fail("WDOG-STATE", "expected faulted, got %s", state)
	}
	if len(errs) != 1 {
		fail("WDOG-ONE-ERROR", "expected one error event, got %d", len(errs))
	} else if errs[0].Kind != session.FaultNoDataTimeout || errs[0].Code != session.CodeNoDataTimeout {
		fail("WDOG-KIND", "expected %s/%d, got %s/%d",
			session.FaultNoDataTimeout, session.CodeNoDataTimeout, errs[0].Kind, errs[0].Code)
	}

	result.Pass = len(result.Failures) == 0
	return result
}
