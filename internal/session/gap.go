package session

import (
	"context"
	"time"

	"github.com/mfeldt/playcore/internal/log"
	"github.com/mfeldt/playcore/internal/media"
	"github.com/mfeldt/playcore/internal/metrics"
)

// gapLoop drives the gap recovery task. Each pass is synchronous and
// performs no suspension, so no re-entrancy guard is needed.
func (s *Session) gapLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.GapCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.gapTick()
		}
	}
}

// gapTick corrects the playhead when it has drifted into an unbuffered
// gap: it jumps to the start of the nearest buffered range strictly ahead.
// With nothing buffered ahead it waits for more data.
func (s *Session) gapTick() {
	s.mu.Lock()
	var handle SinkHandle
	if s.state == StateActive && s.handles != nil {
		handle = s.handles[media.TrackVideo]
	}
	s.mu.Unlock()
	if handle == nil {
		return
	}

	ranges := handle.BufferedRanges()
	if len(ranges) == 0 {
		return
	}

	position := s.deps.Sink.Position()
	if ranges.Contains(position) {
		return
	}

	next, ok := ranges.NextStartAfter(position)
	if !ok {
		return
	}

	s.deps.Sink.SetPosition(next)
	metrics.GapJumpsTotal.Inc()
	s.logger.Info().
		Str(log.FieldEvent, "gap.jump").
		Float64(log.FieldPosition, position).
		Float64("target", next).
		Msg("playhead moved past unbuffered gap")
}
