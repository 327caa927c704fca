package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mfeldt/playcore/internal/fetch"
	"github.com/mfeldt/playcore/internal/media"
)

// fakeSource is a scripted segment source for one track.
type fakeSource struct {
	mu        sync.Mutex
	segs      []*media.SegmentDescriptor
	cursor    int
	bounded   bool
	nextErr   error
	nextDelay time.Duration
	inFlight  int
	maxFlight int
	refreshed []media.TrackPlaylist
}

func (f *fakeSource) RefreshPlaylist(pl media.TrackPlaylist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, pl)
}

func (f *fakeSource) NextSegment(ctx context.Context) (*media.SegmentDescriptor, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	delay := f.nextDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	if f.cursor >= len(f.segs) {
		return nil, nil
	}
	return f.segs[f.cursor], nil
}

func (f *fakeSource) Advance() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor++
}

func (f *fakeSource) RemainingSegments() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.segs) - f.cursor
}

func (f *fakeSource) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bounded && f.cursor >= len(f.segs)
}

func (f *fakeSource) NextSegmentStartTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor < len(f.segs) {
		return f.segs[f.cursor].PresentationTime
	}
	return 0
}

func (f *fakeSource) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshed)
}

// fakeHandle is a scripted per-track sink handle.
type fakeHandle struct {
	mu        sync.Mutex
	mime      string
	offset    float64
	ranges    media.Ranges
	appends   int
	appendErr error
}

func (h *fakeHandle) SetCodec(mimeType string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mime = mimeType
}

func (h *fakeHandle) SetTimelineOffset(offset float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offset = offset
}

func (h *fakeHandle) Append(_ []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	h.appends++
	return nil
}

func (h *fakeHandle) BufferedRanges() media.Ranges {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(media.Ranges, len(h.ranges))
	copy(out, h.ranges)
	return out
}

func (h *fakeHandle) setRanges(rs media.Ranges) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ranges = rs
}

func (h *fakeHandle) appendCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.appends
}

// fakeSink is a scripted media sink handing out fakeHandles in open order.
type fakeSink struct {
	mu        sync.Mutex
	callbacks SinkCallbacks
	handles   []*fakeHandle
	opened    int
	position  float64
	playing   bool
	eosCount  int
	released  bool
	openErr   error
}

func newFakeSink() *fakeSink {
	return &fakeSink{handles: []*fakeHandle{{}, {}}}
}

func (s *fakeSink) Bind(cb SinkCallbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
	return nil
}

func (s *fakeSink) OpenTrack(_ context.Context, _ string) (SinkHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.opened >= len(s.handles) {
		return nil, errors.New("no more handles")
	}
	h := s.handles[s.opened]
	s.opened++
	return h, nil
}

func (s *fakeSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
}

func (s *fakeSink) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *fakeSink) SetPosition(pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
}

func (s *fakeSink) SignalEndOfStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eosCount++
}

func (s *fakeSink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
}

func (s *fakeSink) eosSignals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eosCount
}

// videoHandle and audioHandle follow the session's open order: video first.
func (s *fakeSink) videoHandle() *fakeHandle { return s.handles[0] }
func (s *fakeSink) audioHandle() *fakeHandle { return s.handles[1] }

func (s *fakeSink) injectFatal(code int, message string) {
	s.mu.Lock()
	cb := s.callbacks.OnFatalError
	s.mu.Unlock()
	cb(code, message)
}

func (s *fakeSink) injectEndOfMedia() {
	s.mu.Lock()
	cb := s.callbacks.OnEndOfMedia
	s.mu.Unlock()
	cb()
}

// fakeFetcher serves scripted snapshots.
type fakeFetcher struct {
	mu           sync.Mutex
	snapshot     *media.PlaylistSnapshot
	initialErr   error
	refreshErr   error
	initialGate  chan struct{} // when non-nil, FetchInitial blocks until closed
	initialCalls int
	refreshCalls int
	lastRefresh  fetch.Request
}

func (f *fakeFetcher) FetchInitial(_ context.Context, _ fetch.Request) (*media.PlaylistSnapshot, error) {
	f.mu.Lock()
	f.initialCalls++
	gate := f.initialGate
	err := f.initialErr
	snap := *f.snapshot
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *fakeFetcher) Refresh(_ context.Context, req fetch.Request) (*media.PlaylistSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.lastRefresh = req
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	snap := *f.snapshot
	return &snap, nil
}

func (f *fakeFetcher) initialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialCalls
}

func (f *fakeFetcher) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeFetcher) lastRefreshRequest() fetch.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRefresh
}

// fakeDRM records registrations and captures.
type fakeDRM struct {
	mu       sync.Mutex
	captured [][]byte
	handler  func([]byte)
}

func (d *fakeDRM) CaptureContentProtection(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captured = append(d.captured, data)
	return nil
}

func (d *fakeDRM) OnLicenseMetadata(fn func(data []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = fn
}

func (d *fakeDRM) emit(data []byte) {
	d.mu.Lock()
	fn := d.handler
	d.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (d *fakeDRM) hasHandler() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler != nil
}

// recordingListener captures emitted events.
type recordingListener struct {
	mu         sync.Mutex
	errs       []Error
	streamEnds []media.PlaybackInfo
	licenses   [][]byte
}

func (l *recordingListener) OnStreamEnd(info media.PlaybackInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streamEnds = append(l.streamEnds, info)
}

func (l *recordingListener) OnError(e Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, e)
}

func (l *recordingListener) OnLicenseMetadata(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.licenses = append(l.licenses, data)
}

func (l *recordingListener) errors() []Error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Error, len(l.errs))
	copy(out, l.errs)
	return out
}

func (l *recordingListener) streamEndCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.streamEnds)
}
