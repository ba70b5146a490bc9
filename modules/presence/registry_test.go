package presence

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertConsistent checks one entry per username and one per connection.
func assertConsistent(t *testing.T, r *Registry) {
	t.Helper()

	r.mu.RLock()
	defer r.mu.RUnlock()

	require.Equal(t, len(r.byUser), len(r.byConn))
	for user, conn := range r.byUser {
		assert.Equal(t, user, r.byConn[conn], "reverse index mismatch for %s", user)
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	res := r.Register("alice", "c1")
	assert.Equal(t, RegisterResult{}, res)

	conn, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, ConnID("c1"), conn)

	_, ok = r.Lookup("bob")
	assert.False(t, ok)
}

func TestRegistry_LastRegisterWins(t *testing.T) {
	r := NewRegistry()

	r.Register("alice", "c1")
	res := r.Register("alice", "c2")

	assert.Equal(t, ConnID("c1"), res.Displaced)
	assert.Empty(t, res.Previous)

	conn, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, ConnID("c2"), conn)

	// The displaced connection no longer owns anything.
	_, ok = r.UsernameOf("c1")
	assert.False(t, ok)
	username, ok := r.Unregister("c1")
	assert.False(t, ok)
	assert.Empty(t, username)

	assert.Equal(t, []string{"alice"}, r.Snapshot())
	assertConsistent(t, r)
}

func TestRegistry_ReRegisterSameConnection(t *testing.T) {
	r := NewRegistry()

	r.Register("alice", "c1")
	res := r.Register("alicia", "c1")

	assert.Empty(t, res.Displaced)
	assert.Equal(t, "alice", res.Previous)
	assert.Equal(t, []string{"alicia"}, r.Snapshot())
	assertConsistent(t, r)

	// Same username on the same connection is a no-op.
	res = r.Register("alicia", "c1")
	assert.Equal(t, RegisterResult{}, res)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "c1")
	r.Register("bob", "c2")

	username, ok := r.Unregister("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", username)
	assert.Equal(t, []string{"bob"}, r.Snapshot())

	username, ok = r.Unregister("never-registered")
	assert.False(t, ok)
	assert.Empty(t, username)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SnapshotAndEntries(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Snapshot())

	r.Register("carol", "c3")
	r.Register("alice", "c1")
	r.Register("bob", "c2")

	assert.Equal(t, []string{"alice", "bob", "carol"}, r.Snapshot())
	assert.Equal(t, []Entry{
		{Username: "alice", Conn: "c1"},
		{Username: "bob", Conn: "c2"},
		{Username: "carol", Conn: "c3"},
	}, r.Entries())
}

func TestRegistry_RandomChurnKeepsInvariants(t *testing.T) {
	r := NewRegistry()
	rng := rand.New(rand.NewSource(42))

	users := []string{"alice", "bob", "carol", "dave"}
	conns := []ConnID{"c1", "c2", "c3", "c4", "c5"}

	for i := 0; i < 2000; i++ {
		conn := conns[rng.Intn(len(conns))]
		if rng.Intn(3) == 0 {
			r.Unregister(conn)
		} else {
			r.Register(users[rng.Intn(len(users))], conn)
		}
		assertConsistent(t, r)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := ConnID(fmt.Sprintf("c%d", i))
			r.Register(fmt.Sprintf("user%d", i%10), conn)
			_ = r.Snapshot()
			r.Lookup("user1")
			if i%2 == 0 {
				r.Unregister(conn)
			}
		}(i)
	}
	wg.Wait()

	assertConsistent(t, r)
	assert.LessOrEqual(t, r.Len(), 10)
}

func BenchmarkRegistry_Register(b *testing.B) {
	r := NewRegistry()
	for i := 0; i < b.N; i++ {
		r.Register(fmt.Sprintf("user%d", i%1000), ConnID(fmt.Sprintf("c%d", i%1000)))
	}
}
