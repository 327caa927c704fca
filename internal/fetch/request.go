// Package fetch implements the retrying playlist fetcher: a bounded-attempt
// HTTP client that turns a playlist endpoint response into a
// media.PlaylistSnapshot.
package fetch

import (
	"net/url"
	"strconv"

	"github.com/mfeldt/playcore/internal/media"
)

// Continuity carries the per-track resume point of a playlist refresh.
type Continuity struct {
	PresentationTime float64
	TimelineID       int
}

// Request holds the parameters of a playlist fetch. InitialPosition is used
// on the startup fetch; Continuity is set on refreshes instead.
type Request struct {
	AssetURL        string
	MaxDuration     float64 // maxBufferDuration forwarded to the endpoint
	MinBandwidth    int
	MaxBandwidth    int
	InitialPosition float64
	Continuity      map[media.TrackType]Continuity
	DeviceID        string
	ConnectionID    string
	Canary          bool
}

// queryString encodes the request as endpoint query parameters.
func (r Request) queryString() string {
	q := url.Values{}
	q.Set("maxDuration", formatSeconds(r.MaxDuration))
	q.Set("minBandwidth", strconv.Itoa(r.MinBandwidth))
	q.Set("maxBandwidth", strconv.Itoa(r.MaxBandwidth))
	q.Set("deviceId", r.DeviceID)
	q.Set("connectionId", r.ConnectionID)
	if r.Canary {
		q.Set("canary", "true")
	}
	if len(r.Continuity) == 0 {
		q.Set("position", formatSeconds(r.InitialPosition))
		return q.Encode()
	}
	for track, c := range r.Continuity {
		q.Set(string(track)+"Time", formatSeconds(c.PresentationTime))
		q.Set(string(track)+"Timeline", strconv.Itoa(c.TimelineID))
	}
	return q.Encode()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
