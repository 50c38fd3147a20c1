// Package playlist resolves a stream's configured playlist into the final
// play order sent to a worker.
package playlist

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/pkg/relayd/types"
)

// Resolver turns playlist items into the ordered entry list for dispatch.
// The resolved order is frozen for the whole stream cycle: a looping stream
// replays the same sequence, it is not reshuffled mid-cycle.
//
// Resolve is called concurrently for different streams, so the default
// resolver shuffles through the lock-free top-level source; a seeded rng is
// guarded by a mutex.
type Resolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver creates a Resolver using the shared random source.
func NewResolver() *Resolver {
	return &Resolver{}
}

// NewResolverWithSeed creates a Resolver with a fixed seed, for tests.
func NewResolverWithSeed(seed int64) *Resolver {
	return &Resolver{rng: rand.New(rand.NewSource(seed))}
}

func (r *Resolver) shuffle(n int, swap func(i, j int)) {
	if r.rng == nil {
		rand.Shuffle(n, swap)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(n, swap)
}

// Resolve produces the play order for one stream cycle. Disabled items are
// skipped. Returns models.ErrEmptyPlaylist when nothing is playable.
func (r *Resolver) Resolve(stream *models.Stream, items []models.PlaylistItem) ([]types.PlaylistEntry, error) {
	playable := make([]models.PlaylistItem, 0, len(items))
	for _, item := range items {
		if item.Playable() {
			playable = append(playable, item)
		}
	}
	if len(playable) == 0 {
		return nil, fmt.Errorf("stream %s: %w", stream.ID, models.ErrEmptyPlaylist)
	}

	switch stream.OrderMode {
	case models.OrderModeRandom:
		r.shuffle(len(playable), func(i, j int) {
			playable[i], playable[j] = playable[j], playable[i]
		})
	default:
		// Sequential keeps the owner-defined positions.
		sort.SliceStable(playable, func(i, j int) bool {
			return playable[i].Position < playable[j].Position
		})
	}

	entries := make([]types.PlaylistEntry, len(playable))
	for i, item := range playable {
		entries[i] = types.PlaylistEntry{
			Path:            item.Path,
			Title:           item.Title,
			DurationSeconds: item.DurationSeconds,
		}
	}
	return entries, nil
}
