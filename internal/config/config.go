// Package config defines the playback session configuration and its
// loading rules: defaults, optional YAML file, environment overlay.
package config

import (
	"fmt"
	"time"
)

// Playback holds the immutable configuration of one playback session.
// It is validated at Setup and never mutated afterwards.
type Playback struct {
	// AssetURL is the playlist endpoint of the asset to play.
	AssetURL string

	// MaxBufferDuration is the forward buffer target per track, in seconds
	// of media time. A track at or above this level is not fetched.
	MaxBufferDuration float64

	// Bandwidth bounds forwarded to the playlist endpoint, in bits/s.
	MinBandwidth int
	MaxBandwidth int

	// SegmentWatchdogTimeout faults the session when no segment has been
	// appended on a track for this long.
	SegmentWatchdogTimeout time.Duration

	// FeedInterval is the cadence of the buffer feed task.
	FeedInterval time.Duration

	// GapCheckInterval is the cadence of the gap recovery task.
	GapCheckInterval time.Duration

	// MinDesiredFutureSegments is the queued-segment floor below which a
	// playlist refresh becomes due.
	MinDesiredFutureSegments int

	// RefreshBufferPercentageThreshold is the buffer-fill percentage at or
	// above which (for both tracks) a refresh is skipped.
	RefreshBufferPercentageThreshold float64

	// InitialPosition is the requested start position in seconds.
	InitialPosition float64

	CongestionControlEnabled bool
	UseCanary                bool
}

// Defaults returns the playback configuration baseline.
func Defaults() Playback {
	return Playback{
		MaxBufferDuration:                30,
		MinBandwidth:                     0,
		MaxBandwidth:                     20_000_000,
		SegmentWatchdogTimeout:           30 * time.Second,
		FeedInterval:                     500 * time.Millisecond,
		GapCheckInterval:                 100 * time.Millisecond,
		MinDesiredFutureSegments:         2,
		RefreshBufferPercentageThreshold: 75,
	}
}

// Validate checks the configuration for values the session cannot run with.
func (p Playback) Validate() error {
	if p.AssetURL == "" {
		return fmt.Errorf("assetUrl is empty")
	}
	if p.MaxBufferDuration <= 0 {
		return fmt.Errorf("maxBufferDuration must be positive, got %v", p.MaxBufferDuration)
	}
	if p.MinBandwidth < 0 {
		return fmt.Errorf("minBandwidth must not be negative, got %d", p.MinBandwidth)
	}
	if p.MaxBandwidth > 0 && p.MaxBandwidth < p.MinBandwidth {
		return fmt.Errorf("maxBandwidth %d is below minBandwidth %d", p.MaxBandwidth, p.MinBandwidth)
	}
	if p.SegmentWatchdogTimeout <= 0 {
		return fmt.Errorf("segmentWatchdogTimeout must be positive, got %v", p.SegmentWatchdogTimeout)
	}
	if p.FeedInterval <= 0 {
		return fmt.Errorf("feedInterval must be positive, got %v", p.FeedInterval)
	}
	if p.GapCheckInterval <= 0 {
		return fmt.Errorf("gapCheckInterval must be positive, got %v", p.GapCheckInterval)
	}
	if p.MinDesiredFutureSegments < 0 {
		return fmt.Errorf("minDesiredFutureSegments must not be negative, got %d", p.MinDesiredFutureSegments)
	}
	if p.RefreshBufferPercentageThreshold <= 0 || p.RefreshBufferPercentageThreshold > 100 {
		return fmt.Errorf("refreshBufferPercentageThreshold must be in (0,100], got %v", p.RefreshBufferPercentageThreshold)
	}
	if p.InitialPosition < 0 {
		return fmt.Errorf("initialPosition must not be negative, got %v", p.InitialPosition)
	}
	return nil
}
