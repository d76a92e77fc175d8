package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(testConfig(), Deps{
		Resolver: &fakeResolver{},
		Pipeline: &fakePipeline{},
		Voice:    &fakeVoice{},
	})
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := newTestRegistry()
	defer r.DestroyAll("test cleanup")

	s1, created := r.GetOrCreate("g1")
	assert.True(t, created)
	require.NotNil(t, s1)

	s2, created := r.GetOrCreate("g1")
	assert.False(t, created)
	assert.Same(t, s1, s2)

	_, ok := r.Get("g2")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_SingleWinnerUnderContention(t *testing.T) {
	r := newTestRegistry()
	defer r.DestroyAll("test cleanup")

	const n = 16
	var wg sync.WaitGroup
	sessions := make([]*Session, n)
	var wins int64
	var winsMu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, created := r.GetOrCreate("g1")
			sessions[i] = s
			if created {
				winsMu.Lock()
				wins++
				winsMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins, "exactly one caller wins creation")
	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestRegistry_DestroyRemovesEntry(t *testing.T) {
	r := newTestRegistry()
	defer r.DestroyAll("test cleanup")

	s1, _ := r.GetOrCreate("g1")
	s1.Destroy("test")

	require.Eventually(t, func() bool { return r.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	// the next command transparently creates a fresh session
	s2, created := r.GetOrCreate("g1")
	assert.True(t, created)
	assert.NotSame(t, s1, s2)
	assert.False(t, s2.Closed())
}

func TestRegistry_Snapshots(t *testing.T) {
	r := newTestRegistry()
	defer r.DestroyAll("test cleanup")

	r.GetOrCreate("g1")
	r.GetOrCreate("g2")

	snaps := r.Snapshots()
	assert.Len(t, snaps, 2)
	guilds := map[string]bool{}
	for _, s := range snaps {
		guilds[s.GuildID] = true
		assert.Equal(t, StatusIdle, s.Status)
	}
	assert.True(t, guilds["g1"] && guilds["g2"])
}

func TestRegistry_DestroyAll(t *testing.T) {
	r := newTestRegistry()

	r.GetOrCreate("g1")
	r.GetOrCreate("g2")
	r.DestroyAll("shutdown")

	require.Eventually(t, func() bool { return r.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
