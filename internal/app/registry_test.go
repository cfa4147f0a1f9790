package app

import (
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSignal struct{}

func (nopSignal) TrySend(core.Frame) error { return nil }
func (nopSignal) Close()                   {}

func usernames(conns []Connection) []string {
	out := make([]string, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Player.Username)
	}
	return out
}

func TestRegistryInsertGet(t *testing.T) {
	now := time.Unix(500, 0)
	r := NewRegistry(func() time.Time { return now })

	id := r.Insert(nopSignal{})
	require.NotEmpty(t, id)

	c, ok := r.Get(id)
	require.True(t, ok)
	assert.Empty(t, c.Rooms)
	assert.Nil(t, c.Player.Position)
	assert.False(t, c.Player.OnStage)
	assert.Equal(t, now, c.LastLiveness)

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryJoinIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Insert(nopSignal{})

	_, existing, joined := r.Join(a, "hall", "alice")
	require.True(t, joined)
	assert.Empty(t, existing)

	_, existing, joined = r.Join(a, "hall", "alice")
	assert.False(t, joined)
	assert.Nil(t, existing)

	c, _ := r.Get(a)
	assert.Equal(t, []domain.RoomSlug{"hall"}, c.Rooms)
	assert.Len(t, r.MembersOf("hall"), 1)
}

func TestRegistryJoinKeepsFirstName(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Insert(nopSignal{})

	r.Join(a, "hall", "alice")
	self, _, joined := r.Join(a, "garden", "mallory")
	require.True(t, joined)
	assert.Equal(t, "alice", self.Player.Username)
	assert.Equal(t, []domain.RoomSlug{"garden", "hall"}, self.Rooms)
}

func TestRegistryJoinReturnsPriorMembers(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Insert(nopSignal{})
	b := r.Insert(nopSignal{})
	c := r.Insert(nopSignal{})

	r.Join(a, "hall", "alice")
	r.SetPosition(a, domain.Position{X: 1, Y: 1})
	r.Join(b, "hall", "bob")
	r.SetOnStage(b, true)

	_, existing, joined := r.Join(c, "hall", "carol")
	require.True(t, joined)
	assert.Equal(t, []string{"alice", "bob"}, usernames(existing))
	assert.Equal(t, domain.Position{X: 1, Y: 1}, existing[0].DTO().Position)
	assert.True(t, existing[1].DTO().OnStage)

	assert.Equal(t, []string{"alice", "bob", "carol"}, usernames(r.MembersOf("hall")))
}

func TestRegistryJoinUnknownConnection(t *testing.T) {
	r := NewRegistry(nil)
	_, _, joined := r.Join("ghost", "hall", "alice")
	assert.False(t, joined)
	assert.Empty(t, r.Rooms())
}

func TestRegistryLeave(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Insert(nopSignal{})
	b := r.Insert(nopSignal{})
	r.Join(a, "hall", "alice")
	r.Join(b, "hall", "bob")

	assert.True(t, r.Leave(a, "hall"))
	assert.False(t, r.Leave(a, "hall"), "second leave is a no-op")
	assert.False(t, r.Leave(a, "garden"), "never joined")
	assert.Equal(t, []string{"bob"}, usernames(r.MembersOf("hall")))

	r.Leave(b, "hall")
	assert.Empty(t, r.MembersOf("hall"))
	assert.Empty(t, r.Rooms(), "room disappears with its last member")
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Insert(nopSignal{})
	b := r.Insert(nopSignal{})
	r.Join(a, "hall", "alice")
	r.Join(a, "garden", "alice")
	r.Join(b, "hall", "bob")

	gone, ok := r.Remove(a)
	require.True(t, ok)
	assert.Equal(t, []domain.RoomSlug{"garden", "hall"}, gone.Rooms)
	assert.Equal(t, "alice", gone.Player.Username)

	assert.Equal(t, []string{"bob"}, usernames(r.MembersOf("hall")))
	assert.Empty(t, r.MembersOf("garden"))
	assert.Equal(t, []core.RoomInfo{{Slug: "hall", MemberCount: 1}}, r.Rooms())

	_, ok = r.Remove(a)
	assert.False(t, ok, "removing twice is a no-op")
}

func TestRegistryTouch(t *testing.T) {
	now := time.Unix(100, 0)
	r := NewRegistry(func() time.Time { return now })
	a := r.Insert(nopSignal{})

	now = now.Add(45 * time.Second)
	assert.True(t, r.Touch(a))
	c, _ := r.Get(a)
	assert.Equal(t, now, c.LastLiveness)

	assert.False(t, r.Touch("ghost"))
}

func TestRegistryFindInRoomEarliestWins(t *testing.T) {
	r := NewRegistry(nil)
	first := r.Insert(nopSignal{})
	second := r.Insert(nopSignal{})
	other := r.Insert(nopSignal{})
	r.Join(first, "hall", "sam")
	r.Join(second, "hall", "sam")
	r.Join(other, "garden", "zoe")

	c, ok := r.FindInRoom("hall", "sam")
	require.True(t, ok)
	assert.Equal(t, first, c.ID)

	_, ok = r.FindInRoom("hall", "zoe")
	assert.False(t, ok, "zoe is only in garden")
}

func TestRegistrySnapshotsAreCopies(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Insert(nopSignal{})
	c, _ := r.SetPosition(a, domain.Position{X: 1, Y: 2})

	c.Player.Position.X = 99
	fresh, _ := r.Get(a)
	assert.Equal(t, float64(1), fresh.Player.Position.X)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := r.Insert(nopSignal{})
			r.Join(id, "hall", "p")
			r.SetPosition(id, domain.Position{X: 1})
			r.MembersOf("hall")
			r.Touch(id)
			r.Remove(id)
		}()
	}
	wg.Wait()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Rooms())
}
