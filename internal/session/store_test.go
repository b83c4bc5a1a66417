package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	s1 := store.GetOrCreate("a")
	s2 := store.GetOrCreate("a")
	s3 := store.GetOrCreate("b")

	assert.Same(t, s1, s2)
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, store.Size())
	assert.Equal(t, estimator.StatusIdle, s1.Snapshot().Status)
}

func TestGetMissingAndDelete(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	_, ok := store.Get("nope")
	assert.False(t, ok)

	store.GetOrCreate("a")
	got, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID())

	store.Delete("a")
	_, ok = store.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Size())
}

func TestSessionsExpire(t *testing.T) {
	store := NewStore(20 * time.Millisecond)
	defer store.Stop()

	old := store.GetOrCreate("a")
	time.Sleep(40 * time.Millisecond)

	_, ok := store.Get("a")
	assert.False(t, ok)

	fresh := store.GetOrCreate("a")
	assert.NotSame(t, old, fresh)
}

func TestLoadingSessionsNeverExpire(t *testing.T) {
	store := &Store{items: make(map[string]*entry), ttl: time.Millisecond, stopChan: make(chan struct{})}

	busy := store.GetOrCreate("busy")
	require.NoError(t, busy.Begin("mow my lawn"))
	store.GetOrCreate("idle")

	time.Sleep(5 * time.Millisecond)
	removed := store.removeExpired()

	assert.Equal(t, 1, removed)
	_, ok := store.Get("busy")
	assert.True(t, ok)
}

func TestOnCreateHook(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Stop()

	var created []string
	store.OnCreate(func(s *estimator.Session) {
		created = append(created, s.ID())
	})

	store.GetOrCreate("a")
	store.GetOrCreate("a")
	store.GetOrCreate("b")

	assert.Equal(t, []string{"a", "b"}, created)
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Minute, janitorInterval(30*time.Minute))
	assert.Equal(t, 10*time.Second, janitorInterval(20*time.Second))
	assert.Equal(t, time.Minute, janitorInterval(0))
}

func TestStopIsIdempotent(t *testing.T) {
	store := NewStore(time.Minute)
	store.Stop()
	assert.NotPanics(t, store.Stop)
}

// TestStoreConcurrentAccess tests thread safety of store operations
func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore(5 * time.Minute)
	defer store.Stop()

	numGoroutines := 10
	numOperations := 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for g := 0; g < numGoroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < numOperations; i++ {
				id := fmt.Sprintf("s-%d", i%20)
				store.GetOrCreate(id)
				store.Get(id)
				if i%7 == 0 {
					store.Delete(id)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Size(), 20)
}
