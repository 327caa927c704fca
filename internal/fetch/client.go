package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mfeldt/playcore/internal/log"
	"github.com/mfeldt/playcore/internal/media"
)

const (
	// initialAttempts bounds the startup playlist fetch. Refreshes get a
	// single attempt; the next feed tick retries if still warranted.
	initialAttempts = 5
	defaultDelay    = 2 * time.Second
)

// Client fetches playlist snapshots over HTTP with bounded retry.
type Client struct {
	http  *http.Client
	delay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAttemptDelay overrides the fixed inter-attempt delay.
func WithAttemptDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// New creates a playlist fetch client.
func New(opts ...Option) *Client {
	c := &Client{
		http:  &http.Client{Timeout: 30 * time.Second},
		delay: defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchInitial retrieves the startup snapshot with up to five attempts and
// a fixed inter-attempt delay.
func (c *Client) FetchInitial(ctx context.Context, req Request) (*media.PlaylistSnapshot, error) {
	logger := log.WithComponent("fetch")

	var lastErr error
	for attempt := 1; attempt <= initialAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		snapshot, err := c.fetchOnce(ctx, req)
		if err == nil {
			return snapshot, nil
		}
		lastErr = err
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "playlist.fetch_retry").
			Int(log.FieldAttempt, attempt).
			Msg("playlist fetch attempt failed")
	}

	return nil, fmt.Errorf("playlist fetch failed after %d attempts: %w", initialAttempts, lastErr)
}

// Refresh retrieves a new snapshot with a single attempt.
func (c *Client) Refresh(ctx context.Context, req Request) (*media.PlaylistSnapshot, error) {
	snapshot, err := c.fetchOnce(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("playlist refresh: %w", err)
	}
	return snapshot, nil
}

// playlistResponse is the endpoint wire schema.
type playlistResponse struct {
	IsLive                     bool            `json:"isLive"`
	Duration                   float64         `json:"duration"`
	TimeShiftBufferDepth       *float64        `json:"timeShiftBufferDepth"`
	SuggestedPresentationDelay *float64        `json:"suggestedPresentationDelay"`
	Tracks                     []trackPlaylist `json:"tracks"`
	ContentProtection          []byte          `json:"contentProtection"`
}

type trackPlaylist struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Codecs  string `json:"codecs"`
	Payload []byte `json:"payload"`
}

func (c *Client) fetchOnce(ctx context.Context, req Request) (*media.PlaylistSnapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.AssetURL+"?"+req.queryString(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist endpoint returned %s", res.Status)
	}

	var payload playlistResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode playlist response: %w", err)
	}

	snapshot := &media.PlaylistSnapshot{
		IsLive:                     payload.IsLive,
		Duration:                   payload.Duration,
		TimeShiftBufferDepth:       -1,
		SuggestedPresentationDelay: -1,
		Tracks:                     make(map[media.TrackType]media.TrackPlaylist, len(payload.Tracks)),
		ContentProtection:          payload.ContentProtection,
	}
	if payload.TimeShiftBufferDepth != nil {
		snapshot.TimeShiftBufferDepth = *payload.TimeShiftBufferDepth
	}
	if payload.SuggestedPresentationDelay != nil {
		snapshot.SuggestedPresentationDelay = *payload.SuggestedPresentationDelay
	}
	for _, t := range payload.Tracks {
		track := media.TrackType(t.Type)
		snapshot.Tracks[track] = media.TrackPlaylist{
			Track:   track,
			URL:     t.URL,
			Codecs:  t.Codecs,
			Payload: t.Payload,
		}
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
