package stub

import (
	"context"
	"sync"

	"github.com/mfeldt/playcore/internal/media"
	"github.com/mfeldt/playcore/internal/session"
)

// Sink is an in-memory media sink. Appended segments extend a per-track
// buffered range set; the playhead only moves when SetPosition is called
// or Advance simulates playback progress.
type Sink struct {
	mu sync.Mutex

	callbacks session.SinkCallbacks
	handles   map[string]*Handle
	position  float64
	playing   bool
	eos       bool
	released  bool
}

// NewSink creates an in-memory media sink.
func NewSink() *Sink {
	return &Sink{handles: make(map[string]*Handle)}
}

// Bind stores the session's notification callbacks.
func (s *Sink) Bind(cb session.SinkCallbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
	return nil
}

// OpenTrack resolves immediately; the in-memory sink is always ready.
func (s *Sink) OpenTrack(_ context.Context, mimeType string) (session.SinkHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &Handle{sink: s, mime: mimeType}
	s.handles[mimeType] = h
	return h, nil
}

// Play marks the sink as playing.
func (s *Sink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
}

// Position returns the current playhead.
func (s *Sink) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetPosition moves the playhead.
func (s *Sink) SetPosition(pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
}

// Advance simulates playback progress by the given number of seconds.
func (s *Sink) Advance(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position += seconds
}

// SignalEndOfStream records the end-of-stream signal.
func (s *Sink) SignalEndOfStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eos = true
}

// Release drops all track handles.
func (s *Sink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.handles = make(map[string]*Handle)
}

// EndOfStream reports whether end of stream was signalled.
func (s *Sink) EndOfStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eos
}

// Released reports whether the sink was released.
func (s *Sink) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// InjectFatal delivers a fatal-error notification to the bound session.
func (s *Sink) InjectFatal(code int, message string) {
	s.mu.Lock()
	cb := s.callbacks.OnFatalError
	s.mu.Unlock()
	if cb != nil {
		cb(code, message)
	}
}

// InjectEndOfMedia delivers an end-of-media notification.
func (s *Sink) InjectEndOfMedia() {
	s.mu.Lock()
	cb := s.callbacks.OnEndOfMedia
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Handle is a per-track buffer handle of the in-memory sink.
type Handle struct {
	mu sync.Mutex

	sink   *Sink
	mime   string
	offset float64
	ranges media.Ranges

	appendErr error // injected append failure, one shot
}

// SetCodec records a content-type switch.
func (h *Handle) SetCodec(mimeType string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mime = mimeType
}

// SetTimelineOffset records the timestamp offset for subsequent appends.
func (h *Handle) SetTimelineOffset(offset float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offset = offset
}

// Append extends the buffered range set. The stub models each append as
// two seconds of media starting at the end of the last range.
func (h *Handle) Append(_ []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.appendErr != nil {
		err := h.appendErr
		h.appendErr = nil
		return err
	}

	const appendDuration = 2.0
	start := 0.0
	if len(h.ranges) > 0 {
		start = h.ranges[len(h.ranges)-1].End
	}
	h.extendLocked(start, start+appendDuration)
	return nil
}

// ExtendRange grows the buffered set with an explicit interval, merging
// with the last range when contiguous.
func (h *Handle) ExtendRange(start, end float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.extendLocked(start, end)
}

func (h *Handle) extendLocked(start, end float64) {
	if n := len(h.ranges); n > 0 && h.ranges[n-1].End >= start {
		if end > h.ranges[n-1].End {
			h.ranges[n-1].End = end
		}
		return
	}
	h.ranges = append(h.ranges, media.Range{Start: start, End: end})
}

// BufferedRanges returns a copy of the buffered interval set.
func (h *Handle) BufferedRanges() media.Ranges {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(media.Ranges, len(h.ranges))
	copy(out, h.ranges)
	return out
}

// FailNextAppend injects a one-shot append failure.
func (h *Handle) FailNextAppend(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendErr = err
}

// Mime returns the current content type of the handle.
func (h *Handle) Mime() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mime
}
