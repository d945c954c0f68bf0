package worldmap

import "go.uber.org/zap"

// PacketBuilder constructs the concrete wire packets a Map needs to send
// during add/remove-player sequencing. It is supplied by the block runtime
// (which knows the session's packet type — JP/NA/Vita — and therefore how
// to encode strings and which opcode table applies), keeping worldmap
// itself free of any one platform's wire format.
type PacketBuilder interface {
	LevelLoad(mapName string, receiver ObjectID) []byte
	SetPlayerID(id ObjectID) []byte
	CharacterSpawn(id ObjectID, x, y int32, isMe bool) []byte
	StaticObject(obj StaticObject, toVita bool) []byte
	OtherCharacterSpawn(id ObjectID) []byte
	EquipmentAndPalette(id ObjectID) []byte
	RemoveObject(id ObjectID) []byte
}

// AddPlayer runs the spec §4.6 add-player sequence under the map lock:
// level-load, SetPlayerID, self-spawn, static-data stream (with per-object
// script preprocessing in to_vita mode when applicable), other-players
// stream, announce-to-others, and only then join the roster.
func (m *Map) AddPlayer(s Sender, builder PacketBuilder, isVita bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := s.ObjectID()

	_ = s.Send(builder.LevelLoad(m.name, id))
	_ = s.Send(builder.SetPlayerID(id))
	_ = s.Send(builder.CharacterSpawn(id, m.spawnX, m.spawnY, true))

	for _, obj := range m.static {
		if obj.ScriptName != "" && m.scripts != nil {
			m.preprocessToVita(&obj, isVita)
		}
		_ = s.Send(builder.StaticObject(obj, isVita))
	}

	for _, entry := range m.liveRoster() {
		_ = s.Send(builder.OtherCharacterSpawn(entry.ObjectID()))
		_ = s.Send(builder.EquipmentAndPalette(entry.ObjectID()))
	}

	for _, other := range m.liveRoster() {
		_ = other.Send(builder.OtherCharacterSpawn(id))
		_ = other.Send(builder.EquipmentAndPalette(id))
	}

	entityID := m.pool.Create()
	m.roster = append(m.roster, rosterEntry{id: entityID, sender: s})
}

// preprocessToVita runs obj's script in "to_vita" mode with obj.Data as
// the packet; nothing the script produces is written back, so obj.Data is
// streamed unchanged. Failures are swallowed (logged) since a broken
// script must not block every other player's stream.
func (m *Map) preprocessToVita(obj *StaticObject, isVita bool) {
	if !isVita {
		return
	}
	ctx := InteractContext{
		Packet:   obj.Data,
		SenderID: 0,
		CallType: "to_vita",
		Players:  func() []ObjectID { return m.objectIDs() },
		Send:     func(ObjectID, []byte) error { return nil },
		GetObject: func(id ObjectID) (StaticObject, bool) {
			return m.findStatic(id)
		},
		GetNPC: func(id ObjectID) (StaticObject, bool) {
			return m.findStatic(id)
		},
		GetExtraData: func(ObjectID) ([]byte, bool) { return nil, false },
	}
	if err := m.scripts.Run(obj.ScriptName, ctx); err != nil && m.log != nil {
		m.log.Debug("to_vita preprocessing failed", zap.String("script", obj.ScriptName), zap.Error(err))
	}
}

// RemovePlayer swap-removes s from the roster and sends every remaining
// player the same RemoveObject packet for s's id; no per-recipient id is
// patched in (spec §4.6 "remove player").
func (m *Map) RemovePlayer(s Sender, builder PacketBuilder) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := s.ObjectID()
	for i, e := range m.roster {
		if m.pool.Alive(e.id) && e.sender.ObjectID() == id {
			m.pool.Destroy(e.id)
			last := len(m.roster) - 1
			m.roster[i] = m.roster[last]
			m.roster = m.roster[:last]
			break
		}
	}

	for _, other := range m.liveRoster() {
		_ = other.Send(builder.RemoveObject(id))
	}
}

func (m *Map) objectIDs() []ObjectID {
	ids := make([]ObjectID, 0, len(m.roster))
	for _, e := range m.roster {
		if m.pool.Alive(e.id) {
			ids = append(ids, e.sender.ObjectID())
		}
	}
	return ids
}

func (m *Map) findStatic(id ObjectID) (StaticObject, bool) {
	for _, obj := range m.static {
		if obj.ID == id {
			return obj, true
		}
	}
	return StaticObject{}, false
}
