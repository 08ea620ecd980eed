package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := uuid.NewString()

	// Given nobody is online
	req.Empty(registry.AllUsernames())

	// When a connection registers as alice
	reg := registry.Register(conn, " alice ")

	// Then alice is online through that connection
	req.True(reg.Applied)
	req.Equal("alice", reg.Username)
	req.True(registry.Online("alice"))
	req.Equal([]string{conn}, registry.ConnectionsFor("alice"))
	name, ok := registry.UsernameFor(conn)
	req.True(ok)
	req.Equal("alice", name)
	req.Equal([]string{"alice"}, registry.AllUsernames())
}

func TestRegistry_Register_Blank_Username_Is_Ignored(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	for _, name := range []string{"", "   ", "\t"} {
		reg := registry.Register(uuid.NewString(), name)
		req.False(reg.Applied)
	}

	req.Zero(registry.Count())
	req.Empty(registry.AllUsernames())
}

func TestRegistry_Same_Username_Multiple_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn1, conn2 := "c1", "c2"

	// Given alice is registered from two connections
	registry.Register(conn1, "alice")
	registry.Register(conn2, "Alice")

	// Then both connections receive alice's traffic
	req.Equal([]string{conn1, conn2}, registry.ConnectionsFor("ALICE"))
	req.Equal(1, registry.Count())

	// When the first connection leaves
	dep := registry.Disconnect(conn1)

	// Then alice is still online
	req.True(dep.Found)
	req.False(dep.FullyRemoved)
	req.Equal("alice", dep.Username)
	req.True(registry.Online("alice"))
	req.Equal([]string{conn2}, registry.ConnectionsFor("alice"))

	// When the second connection leaves
	dep = registry.Disconnect(conn2)

	// Then alice is gone and no empty entry is left behind
	req.True(dep.FullyRemoved)
	req.Equal("Alice", dep.Username)
	req.False(registry.Online("alice"))
	req.Empty(registry.ConnectionsFor("alice"))
	req.Empty(registry.users)
	req.Empty(registry.connections)
}

func TestRegistry_Disconnect_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	dep := registry.Disconnect("missing")

	req.False(dep.Found)
	req.False(dep.FullyRemoved)
	req.Empty(dep.Username)
}

func TestRegistry_Reregister_Moves_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given a connection registered as alice
	registry.Register("c1", "alice")

	// When the same connection registers as bob
	reg := registry.Register("c1", "bob")

	// Then it now belongs to bob only and alice's empty entry is deleted
	req.True(reg.Applied)
	req.Equal("alice", reg.Previous)
	req.True(reg.PreviousRemoved)
	req.False(registry.Online("alice"))
	req.Equal([]string{"c1"}, registry.ConnectionsFor("bob"))
	name, _ := registry.UsernameFor("c1")
	req.Equal("bob", name)
}

func TestRegistry_Reregister_Same_Name_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("c1", "alice")
	reg := registry.Register("c1", "ALICE")

	req.Empty(reg.Previous)
	req.False(reg.PreviousRemoved)
	req.Equal([]string{"c1"}, registry.ConnectionsFor("alice"))
	req.Equal([]string{"alice"}, registry.AllUsernames())
}

func TestRegistry_AllUsernames_Sorted_Case_Insensitively(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("c1", "charlie")
	registry.Register("c2", "Bob")
	registry.Register("c3", "alice")
	registry.Register("c4", "bob")

	req.Equal([]string{"alice", "Bob", "charlie"}, registry.AllUsernames())
}

func TestRegistry_Concurrent_Register_Disconnect_Same_Username(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	const connections = 200

	// Given a long lived connection that stays registered
	registry.Register("anchor", "alice")

	// When many connections register and half of them disconnect concurrently
	var wg sync.WaitGroup
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%03d", i)
			registry.Register(conn, "alice")
			_ = registry.AllUsernames()
			_ = registry.ConnectionsFor("alice")
			if i%2 == 0 {
				registry.Disconnect(conn)
			}
		}(i)
	}
	wg.Wait()

	// Then exactly the surviving connections are recorded, with no lost ids
	conns := registry.ConnectionsFor("alice")
	req.Len(conns, connections/2+1)
	req.Contains(conns, "anchor")
	for i := 1; i < connections; i += 2 {
		req.Contains(conns, fmt.Sprintf("c%03d", i))
	}

	// When every connection leaves concurrently
	for _, conn := range conns {
		wg.Add(1)
		go func(conn string) {
			defer wg.Done()
			registry.Disconnect(conn)
		}(conn)
	}
	wg.Wait()

	// Then alice is offline and nothing dangles
	req.False(registry.Online("alice"))
	req.Empty(registry.users)
	req.Empty(registry.connections)
}

func TestRegistry_Concurrent_Last_Disconnect_Reported_Once(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	const connections = 64

	for i := 0; i < connections; i++ {
		registry.Register(fmt.Sprintf("c%d", i), "bob")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if registry.Disconnect(fmt.Sprintf("c%d", i)).FullyRemoved {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	req.Equal(1, removed)
	req.Zero(registry.Count())
}
