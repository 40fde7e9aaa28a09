package toolmap

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

func TestPutAndGet(t *testing.T) {
	m := New()
	id := types.ToolCallIdentity{ClientID: NewClientID(), UpstreamID: "idx_0"}
	m.Put(id)

	got, ok := m.Get(id.ClientID)
	require.True(t, ok)
	assert.Equal(t, "idx_0", got.UpstreamID)
}

func TestGetMissing(t *testing.T) {
	m := New()
	_, ok := m.Get("call_doesnotexist")
	assert.False(t, ok)
}

func TestLRUEvictsLeastRecentlyUsedNotOldestInserted(t *testing.T) {
	m := New()

	// Fill to capacity.
	ids := make([]string, MaxEntries)
	for i := 0; i < MaxEntries; i++ {
		ids[i] = NewClientID()
		m.Put(types.ToolCallIdentity{ClientID: ids[i], UpstreamID: fmt.Sprintf("idx_%d", i)})
	}
	require.Equal(t, MaxEntries, m.Len())

	// Touch the first-inserted entry so it is no longer the least
	// recently used.
	_, ok := m.Get(ids[0])
	require.True(t, ok)

	// Insert one more entry, forcing an eviction.
	newID := NewClientID()
	m.Put(types.ToolCallIdentity{ClientID: newID, UpstreamID: "idx_new"})

	assert.LessOrEqual(t, m.Len(), MaxEntries)

	// The touched entry must have survived eviction.
	_, ok = m.Get(ids[0])
	assert.True(t, ok, "recently-touched entry should not be evicted before untouched ones")
}

func TestOpportunisticSweepTriggersOnSweepEveryBoundary(t *testing.T) {
	m := New()
	m.limiter.SetBurst(1000) // allow repeated sweeps within the test's tight loop

	expired := types.ToolCallIdentity{ClientID: NewClientID(), UpstreamID: "idx_expired"}
	m.Put(expired)
	// Force it into the past so the next sweep collects it.
	m.mu.Lock()
	el := m.byID[expired.ClientID]
	id := el.Value.(*entry).identity
	id.LastTouched = time.Now().Add(-2 * TTL)
	el.Value.(*entry).identity = id
	m.mu.Unlock()

	for i := 0; i < SweepEvery-2; i++ {
		m.Put(types.ToolCallIdentity{ClientID: NewClientID(), UpstreamID: "filler"})
	}

	// Still present: the Put above was insert #1 and the fillers bring
	// the count to SweepEvery-1, one short of a sweep. byID is read
	// directly because Get itself drops an entry past its TTL.
	m.mu.Lock()
	_, ok := m.byID[expired.ClientID]
	m.mu.Unlock()
	assert.True(t, ok, "sweep should not run before the Nth insert")

	// One more insert crosses the SweepEvery boundary.
	m.Put(types.ToolCallIdentity{ClientID: NewClientID(), UpstreamID: "trigger"})

	m.mu.Lock()
	_, stillThere := m.byID[expired.ClientID]
	m.mu.Unlock()
	assert.False(t, stillThere, "opportunistic sweep should evict the expired entry")
}

func TestDelete(t *testing.T) {
	m := New()
	id := types.ToolCallIdentity{ClientID: NewClientID()}
	m.Put(id)
	m.Delete(id.ClientID)
	_, ok := m.Get(id.ClientID)
	assert.False(t, ok)
}

func TestNewClientIDShape(t *testing.T) {
	id := NewClientID()
	assert.True(t, len(id) >= len("call_")+1)
	assert.Equal(t, "call_", id[:5])
}
