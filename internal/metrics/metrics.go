// Package metrics provides Prometheus metrics for the playback core.
// No high-cardinality labels: track and error kind only, never session ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters

	// SegmentsAppendedTotal counts segments appended to the sink, by track.
	SegmentsAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_segments_appended_total",
		Help: "Total number of media segments appended to the sink, by track.",
	}, []string{"track"})

	// SegmentErrorsTotal counts per-tick fetch/append failures, by track.
	// These are recoverable; the next tick retries naturally.
	SegmentErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_segment_errors_total",
		Help: "Total number of recoverable segment fetch/append failures, by track.",
	}, []string{"track"})

	// DiscontinuitiesTotal counts detected presentation-time gaps, by track.
	DiscontinuitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_discontinuities_total",
		Help: "Total number of presentation-time discontinuities observed on append, by track.",
	}, []string{"track"})

	// PlaylistRefreshTotal counts playlist refresh attempts by result.
	PlaylistRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_playlist_refresh_total",
		Help: "Total number of playlist refresh attempts, by result (success/failure).",
	}, []string{"result"})

	// GapJumpsTotal counts playhead corrections performed by gap recovery.
	GapJumpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playcore_gap_jumps_total",
		Help: "Total number of playhead jumps over unbuffered gaps.",
	})

	// SessionFaultsTotal counts fatal session faults by kind.
	SessionFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_session_faults_total",
		Help: "Total number of fatal session faults, by kind.",
	}, []string{"kind"})

	// EndOfStreamTotal counts end-of-stream signals delivered to the sink.
	EndOfStreamTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playcore_end_of_stream_total",
		Help: "Total number of end-of-stream signals sent to the media sink.",
	})

	// Gauges

	// BufferLevelSeconds tracks remaining buffered media ahead of the
	// playhead, by track.
	BufferLevelSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playcore_buffer_level_seconds",
		Help: "Remaining buffered media ahead of the playhead in seconds, by track.",
	}, []string{"track"})

	// ActiveSessions tracks the number of sessions in the Active state.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playcore_active_sessions",
		Help: "Current number of playback sessions in the Active state.",
	})
)

// RecordAppend increments the append counter for a track.
func RecordAppend(track string) {
	SegmentsAppendedTotal.WithLabelValues(track).Inc()
}

// RecordSegmentError increments the recoverable-failure counter for a track.
func RecordSegmentError(track string) {
	SegmentErrorsTotal.WithLabelValues(track).Inc()
}

// RecordDiscontinuity increments the discontinuity counter for a track.
func RecordDiscontinuity(track string) {
	DiscontinuitiesTotal.WithLabelValues(track).Inc()
}

// RecordRefresh increments the refresh counter with the given result.
// result: "success" or "failure"
func RecordRefresh(result string) {
	PlaylistRefreshTotal.WithLabelValues(result).Inc()
}

// RecordFault increments the session fault counter for the given kind.
func RecordFault(kind string) {
	SessionFaultsTotal.WithLabelValues(kind).Inc()
}

// SetBufferLevel records the remaining buffered duration for a track.
func SetBufferLevel(track string, seconds float64) {
	BufferLevelSeconds.WithLabelValues(track).Set(seconds)
}
