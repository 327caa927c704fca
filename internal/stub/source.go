// Package stub provides in-memory collaborator implementations used by
// the soak harness and by embedding hosts that need a synthetic pipeline.
package stub

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/mfeldt/playcore/internal/media"
)

// ErrInjectedFetch is returned by a source configured with a failure rate.
var ErrInjectedFetch = errors.New("injected segment fetch failure")

// Source is a synthetic segment source producing fixed-duration segments
// for one track. It is safe for use from the session's scheduling
// goroutines.
type Source struct {
	mu sync.Mutex

	track           media.TrackType
	segmentDuration float64
	cursor          int
	total           int // 0 means unbounded (live)
	timelineID      int
	codecs          string
	startTime       float64

	// chaos knobs, probabilities in [0,1]
	failRate  float64
	emptyRate float64
	rng       *rand.Rand
}

// SourceConfig configures a synthetic source.
type SourceConfig struct {
	Track           media.TrackType
	SegmentDuration float64
	TotalSegments   int // 0 for an unbounded live source
	Codecs          string
	StartTime       float64
	FailRate        float64
	EmptyRate       float64
	Seed            int64
}

// NewSource creates a synthetic segment source.
func NewSource(cfg SourceConfig) *Source {
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = 2
	}
	return &Source{
		track:           cfg.Track,
		segmentDuration: cfg.SegmentDuration,
		total:           cfg.TotalSegments,
		codecs:          cfg.Codecs,
		startTime:       cfg.StartTime,
		failRate:        cfg.FailRate,
		emptyRate:       cfg.EmptyRate,
		rng:             rand.New(rand.NewSource(cfg.Seed)), // #nosec G404 -- synthetic data only
	}
}

// RefreshPlaylist extends an unbounded source's window; for a bounded
// source it is a no-op beyond recording the handle.
func (s *Source) RefreshPlaylist(pl media.TrackPlaylist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pl.Codecs != "" {
		s.codecs = pl.Codecs
	}
}

// NextSegment returns the segment at the cursor without advancing it.
func (s *Source) NextSegment(_ context.Context) (*media.SegmentDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRate > 0 && s.rng.Float64() < s.failRate {
		return nil, ErrInjectedFetch
	}
	if s.emptyRate > 0 && s.rng.Float64() < s.emptyRate {
		return nil, nil
	}
	if s.total > 0 && s.cursor >= s.total {
		return nil, nil
	}

	return &media.SegmentDescriptor{
		TimelineID:          s.timelineID,
		PresentationTime:    s.startTime + float64(s.cursor)*s.segmentDuration,
		Duration:            s.segmentDuration,
		Codecs:              s.codecs,
		Payload:             []byte{0xde, 0xad, 0xbe, 0xef},
		IncludesInitSegment: s.cursor == 0,
	}, nil
}

// Advance moves the cursor past the last returned segment.
func (s *Source) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor++
}

// RemainingSegments reports how many segments are still queued.
func (s *Source) RemainingSegments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == 0 {
		return 1 << 20 // unbounded
	}
	if s.cursor >= s.total {
		return 0
	}
	return s.total - s.cursor
}

// Exhausted reports that a bounded source has been fully consumed.
func (s *Source) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total > 0 && s.cursor >= s.total
}

// NextSegmentStartTime returns the presentation time at the cursor.
func (s *Source) NextSegmentStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime + float64(s.cursor)*s.segmentDuration
}
