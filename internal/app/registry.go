package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connection is a copy of one connection's state taken under the registry lock.
type Connection struct {
	ID           core.ConnID
	Signal       core.SignalConnection
	Rooms        []domain.RoomSlug
	Player       domain.Player
	LastLiveness time.Time
}

func (c Connection) In(slug domain.RoomSlug) bool {
	for _, r := range c.Rooms {
		if r == slug {
			return true
		}
	}
	return false
}

func (c Connection) DTO() core.PlayerDTO {
	return core.PlayerDTO{
		ID:       c.ID,
		Username: c.Player.Username,
		Position: c.Player.PositionOrOrigin(),
		OnStage:  c.Player.OnStage,
	}
}

type connEntry struct {
	signal       core.SignalConnection
	rooms        map[domain.RoomSlug]struct{}
	player       domain.Player
	named        bool
	lastLiveness time.Time
}

func (e *connEntry) snapshot(id core.ConnID) Connection {
	rooms := make([]domain.RoomSlug, 0, len(e.rooms))
	for slug := range e.rooms {
		rooms = append(rooms, slug)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })

	player := e.player
	if player.Position != nil {
		pos := *player.Position
		player.Position = &pos
	}
	return Connection{
		ID:           id,
		Signal:       e.signal,
		Rooms:        rooms,
		Player:       player,
		LastLiveness: e.lastLiveness,
	}
}

// Registry owns every live connection and its presence state.
// Room membership is indexed both ways: conn -> rooms and room -> members,
// always updated together under mu. Members carry a join sequence so
// room listings come out in join order.
type Registry struct {
	mu    sync.RWMutex
	now   func() time.Time
	seq   uint64
	conns map[core.ConnID]*connEntry
	rooms map[domain.RoomSlug]map[core.ConnID]uint64
}

// NewRegistry builds an empty registry. A nil clock means time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		now:   now,
		conns: make(map[core.ConnID]*connEntry),
		rooms: make(map[domain.RoomSlug]map[core.ConnID]uint64),
	}
}

// Insert registers a fresh connection with no rooms and returns its id.
func (r *Registry) Insert(sig core.SignalConnection) core.ConnID {
	id := core.NewConnID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{
		signal:       sig,
		rooms:        make(map[domain.RoomSlug]struct{}),
		lastLiveness: r.now(),
	}
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Int("total", len(r.conns)).Msg("inserted connection")
	return id
}

// Remove deletes the connection from the registry and every room.
// The returned snapshot lists the rooms it belonged to. Absent ids are a no-op.
func (r *Registry) Remove(id core.ConnID) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	snap := e.snapshot(id)
	for slug := range e.rooms {
		r.dropMemberLocked(slug, id)
	}
	delete(r.conns, id)
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Int("rooms", len(snap.Rooms)).Msg("removed connection")
	return snap, true
}

func (r *Registry) Get(id core.ConnID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return e.snapshot(id), true
}

// Touch records inbound activity for the connection.
func (r *Registry) Touch(id core.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.lastLiveness = r.now()
	return true
}

// Join adds slug to the connection's rooms. The display name is only taken
// on the first join of the connection's lifetime. existing holds the members
// that were in the room before this join. joined is false when the connection
// is unknown or already a member.
func (r *Registry) Join(id core.ConnID, slug domain.RoomSlug, username string) (self Connection, existing []Connection, joined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return Connection{}, nil, false
	}
	if _, already := e.rooms[slug]; already {
		return e.snapshot(id), nil, false
	}

	existing = r.membersLocked(slug)

	if !e.named {
		e.player.Username = username
		e.named = true
	}
	e.rooms[slug] = struct{}{}
	members, ok := r.rooms[slug]
	if !ok {
		members = make(map[core.ConnID]uint64)
		r.rooms[slug] = members
	}
	r.seq++
	members[id] = r.seq

	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(slug)).Str("username", e.player.Username).Int("members", len(members)).Msg("joined room")
	return e.snapshot(id), existing, true
}

// Leave removes slug from the connection's rooms and reports whether it was a member.
func (r *Registry) Leave(id core.ConnID, slug domain.RoomSlug) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	if _, member := e.rooms[slug]; !member {
		return false
	}
	delete(e.rooms, slug)
	r.dropMemberLocked(slug, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(slug)).Msg("left room")
	return true
}

func (r *Registry) SetPosition(id core.ConnID, pos domain.Position) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	e.player.Position = &pos
	return e.snapshot(id), true
}

func (r *Registry) SetOnStage(id core.ConnID, onStage bool) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	e.player.OnStage = onStage
	return e.snapshot(id), true
}

// MembersOf evaluates the room's membership fresh, in join order.
// Nobody is excluded; dropping the sender is up to the caller.
func (r *Registry) MembersOf(slug domain.RoomSlug) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(slug)
}

// FindInRoom returns the member of slug carrying username. With duplicate
// names the earliest joiner wins, so a later joiner cannot shadow it.
func (r *Registry) FindInRoom(slug domain.RoomSlug, username string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.membersLocked(slug) {
		if c.Player.Username == username {
			return c, true
		}
	}
	return Connection{}, false
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.conns))
	for id, e := range r.conns {
		out = append(out, e.snapshot(id))
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Rooms lists every room with at least one member.
func (r *Registry) Rooms() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for slug, members := range r.rooms {
		out = append(out, core.RoomInfo{Slug: slug, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func (r *Registry) membersLocked(slug domain.RoomSlug) []Connection {
	members := r.rooms[slug]
	if len(members) == 0 {
		return nil
	}
	type ordered struct {
		id  core.ConnID
		seq uint64
	}
	ids := make([]ordered, 0, len(members))
	for id, seq := range members {
		ids = append(ids, ordered{id: id, seq: seq})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].seq < ids[j].seq })

	out := make([]Connection, 0, len(ids))
	for _, o := range ids {
		if e, ok := r.conns[o.id]; ok {
			out = append(out, e.snapshot(o.id))
		}
	}
	return out
}

func (r *Registry) dropMemberLocked(slug domain.RoomSlug, id core.ConnID) {
	members, ok := r.rooms[slug]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, slug)
		log.Debug().Str("module", "app.registry").Str("room", string(slug)).Msg("room emptied")
	}
}
