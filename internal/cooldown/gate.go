package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Key identifies one alert stream: an entity (symbol, protocol pair) and an
// event type.
type Key struct {
	Entity    string
	EventType string
}

// TrackerStore persists last-fired timestamps across restarts.
type TrackerStore interface {
	LoadAll(ctx context.Context) (map[Key]time.Time, error)
	Save(ctx context.Context, key Key, firedAt time.Time) error
	DeleteBefore(ctx context.Context, cutoff time.Time) error
}

// Gate suppresses repeated alerts for the same (entity, event type) pair
// inside the cooldown window.
//
// ShouldFire claims the slot as a side effect, so callers must only consult it
// when they intend to actually emit the alert.
type Gate struct {
	mu        sync.Mutex
	window    time.Duration
	store     TrackerStore
	lastFired map[Key]time.Time
	logger    zerolog.Logger
}

// New constructs a Gate, warming it from the tracker store when one is
// configured. A load failure degrades to an empty gate rather than blocking
// startup.
func New(ctx context.Context, window time.Duration, store TrackerStore, logger zerolog.Logger) *Gate {
	g := &Gate{
		window:    window,
		store:     store,
		lastFired: make(map[Key]time.Time),
		logger:    logger.With().Str("component", "cooldown").Logger(),
	}

	if store != nil {
		tracked, err := store.LoadAll(ctx)
		if err != nil {
			g.logger.Error().Err(err).Msg("failed to load alert tracking; starting cold")
		} else {
			g.lastFired = tracked
			g.logger.Debug().Int("entries", len(tracked)).Msg("alert tracking loaded")
		}
	}

	return g
}

// ShouldFire reports whether an alert for the key may be emitted at now. A
// true result records now as the new last-fired time for the key.
func (g *Gate) ShouldFire(ctx context.Context, entity, eventType string, now time.Time) bool {
	key := Key{Entity: entity, EventType: eventType}

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastFired[key]; ok && now.Sub(last) < g.window {
		return false
	}

	g.lastFired[key] = now
	if g.store != nil {
		if err := g.store.Save(ctx, key, now); err != nil {
			// Persistence is best effort; the in-memory claim still holds.
			g.logger.Error().Err(err).Str("entity", entity).Str("event_type", eventType).
				Msg("failed to persist alert timestamp")
		}
	}
	return true
}

// Purge drops entries whose cooldown has fully expired, in memory and in the
// tracker store.
func (g *Gate) Purge(ctx context.Context, now time.Time) {
	cutoff := now.Add(-g.window)

	g.mu.Lock()
	for key, last := range g.lastFired {
		if last.Before(cutoff) {
			delete(g.lastFired, key)
		}
	}
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.DeleteBefore(ctx, cutoff); err != nil {
			g.logger.Error().Err(err).Msg("failed to purge alert tracking")
		}
	}
}

// Window returns the configured cooldown window.
func (g *Gate) Window() time.Duration {
	return g.window
}
