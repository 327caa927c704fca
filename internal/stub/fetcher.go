package stub

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/mfeldt/playcore/internal/fetch"
	"github.com/mfeldt/playcore/internal/media"
)

// ErrInjectedRefresh is returned by a fetcher configured with a refresh
// failure rate.
var ErrInjectedRefresh = errors.New("injected playlist refresh failure")

// Fetcher is an in-memory playlist fetcher serving a fixed snapshot.
type Fetcher struct {
	mu sync.Mutex

	snapshot        media.PlaylistSnapshot
	initialFailures int
	refreshFailRate float64
	rng             *rand.Rand

	initialCalls int
	refreshCalls int
}

// FetcherConfig configures the synthetic fetcher.
type FetcherConfig struct {
	Snapshot        media.PlaylistSnapshot
	InitialFailures int // number of startup attempts to fail before success
	RefreshFailRate float64
	Seed            int64
}

// NewFetcher creates an in-memory playlist fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	return &Fetcher{
		snapshot:        cfg.Snapshot,
		initialFailures: cfg.InitialFailures,
		refreshFailRate: cfg.RefreshFailRate,
		rng:             rand.New(rand.NewSource(cfg.Seed)), // #nosec G404 -- synthetic data only
	}
}

// FetchInitial serves the configured snapshot, failing the first
// InitialFailures attempts.
func (f *Fetcher) FetchInitial(_ context.Context, _ fetch.Request) (*media.PlaylistSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.initialCalls++
	if f.initialCalls <= f.initialFailures {
		return nil, errors.New("injected initial fetch failure")
	}
	snap := f.snapshot
	return &snap, nil
}

// Refresh serves the configured snapshot, subject to the failure rate.
func (f *Fetcher) Refresh(_ context.Context, _ fetch.Request) (*media.PlaylistSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls++
	if f.refreshFailRate > 0 && f.rng.Float64() < f.refreshFailRate {
		return nil, ErrInjectedRefresh
	}
	snap := f.snapshot
	return &snap, nil
}

// RefreshCalls reports how many refreshes were requested.
func (f *Fetcher) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}
