package cooldown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGateFiresOnceInsideWindow(t *testing.T) {
	g := New(context.Background(), time.Hour, nil, zerolog.Nop())
	now := time.Now().UTC()

	if !g.ShouldFire(context.Background(), "BTC", "liquidation_spike", now) {
		t.Fatal("冷启动应允许首次触发")
	}
	if g.ShouldFire(context.Background(), "BTC", "liquidation_spike", now.Add(30*time.Minute)) {
		t.Fatal("窗口内重复触发应被抑制")
	}
	if !g.ShouldFire(context.Background(), "BTC", "liquidation_spike", now.Add(61*time.Minute)) {
		t.Fatal("窗口过后应重新允许触发")
	}
}

func TestGateKeysAreIndependent(t *testing.T) {
	g := New(context.Background(), time.Hour, nil, zerolog.Nop())
	now := time.Now().UTC()

	if !g.ShouldFire(context.Background(), "BTC", "liquidation_spike", now) {
		t.Fatal("BTC 首次触发应允许")
	}
	if !g.ShouldFire(context.Background(), "ETH", "liquidation_spike", now) {
		t.Fatal("不同 entity 不应互相抑制")
	}
	if !g.ShouldFire(context.Background(), "BTC", "rate_move", now) {
		t.Fatal("不同 event type 不应互相抑制")
	}
}

type memTrackerStore struct {
	mu    sync.Mutex
	fired map[Key]time.Time
}

func newMemTrackerStore() *memTrackerStore {
	return &memTrackerStore{fired: make(map[Key]time.Time)}
}

func (m *memTrackerStore) LoadAll(ctx context.Context) (map[Key]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Key]time.Time, len(m.fired))
	for k, v := range m.fired {
		out[k] = v
	}
	return out, nil
}

func (m *memTrackerStore) Save(ctx context.Context, key Key, firedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired[key] = firedAt
	return nil
}

func (m *memTrackerStore) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.fired {
		if v.Before(cutoff) {
			delete(m.fired, k)
		}
	}
	return nil
}

func TestGateWarmsFromStore(t *testing.T) {
	store := newMemTrackerStore()
	now := time.Now().UTC()

	first := New(context.Background(), time.Hour, store, zerolog.Nop())
	if !first.ShouldFire(context.Background(), "BTC", "liquidation_spike", now) {
		t.Fatal("首次触发应允许")
	}

	// A fresh gate over the same store must keep suppressing.
	second := New(context.Background(), time.Hour, store, zerolog.Nop())
	if second.ShouldFire(context.Background(), "BTC", "liquidation_spike", now.Add(10*time.Minute)) {
		t.Fatal("重启后窗口内触发应被抑制")
	}
}

func TestGatePurge(t *testing.T) {
	store := newMemTrackerStore()
	g := New(context.Background(), time.Hour, store, zerolog.Nop())
	now := time.Now().UTC()

	g.ShouldFire(context.Background(), "BTC", "liquidation_spike", now.Add(-2*time.Hour))
	g.ShouldFire(context.Background(), "ETH", "liquidation_spike", now)
	g.Purge(context.Background(), now)

	if len(store.fired) != 1 {
		t.Fatalf("过期条目应被清理, 剩余 %d", len(store.fired))
	}
	if !g.ShouldFire(context.Background(), "BTC", "liquidation_spike", now) {
		t.Fatal("清理后 BTC 应可再次触发")
	}
}
