package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"boardsync-backend/domain/board"
	"boardsync-backend/pkg/observability"
)

// room holds the live membership of one board. Presence entries are keyed
// by connection id, so one user with several tabs appears once per tab.
type room struct {
	boardID  string
	clients  map[string]*Client
	presence map[string]board.PresenceEntry
}

// RoomManager indexes live rooms. It holds no persistent state and makes
// no authorization decisions; callers gate access before joining.
type RoomManager struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	colors  *ColorAssigner
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewRoomManager creates an empty room index.
func NewRoomManager(metrics *observability.Collector, logger *zap.Logger) *RoomManager {
	return &RoomManager{
		rooms:   make(map[string]*room),
		colors:  NewColorAssigner(time.Now().UnixNano()),
		metrics: metrics,
		logger:  logger,
	}
}

// Join adds the connection to the board room, creating the room on first
// join, and assigns the member a presence color. It returns the new
// member's entry and a presence snapshot that includes it.
func (m *RoomManager) Join(boardID string, c *Client, identity board.Identity) (board.PresenceEntry, []board.PresenceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.rooms[boardID]
	if !ok {
		rm = &room{
			boardID:  boardID,
			clients:  make(map[string]*Client),
			presence: make(map[string]board.PresenceEntry),
		}
		m.rooms[boardID] = rm
		m.metrics.ActiveRooms.Inc()
	}

	entry := board.PresenceEntry{
		ConnectionID: c.ID,
		UserID:       identity.ID,
		DisplayName:  identity.DisplayName,
		Color:        m.colors.Assign(),
	}
	rm.clients[c.ID] = c
	rm.presence[c.ID] = entry

	snapshot := make([]board.PresenceEntry, 0, len(rm.presence))
	for _, e := range rm.presence {
		snapshot = append(snapshot, e)
	}

	m.logger.Debug("Connection joined room",
		zap.String("board_id", boardID),
		zap.String("connection_id", c.ID),
		zap.Int("room_size", len(rm.clients)),
	)
	return entry, snapshot
}

// Leave removes the connection from the room and evicts the room when it
// empties. It reports whether the connection was actually a member, so
// repeated leaves stay idempotent.
func (m *RoomManager) Leave(boardID, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.rooms[boardID]
	if !ok {
		return false
	}
	if _, member := rm.clients[connID]; !member {
		return false
	}
	delete(rm.clients, connID)
	delete(rm.presence, connID)

	if len(rm.clients) == 0 {
		delete(m.rooms, boardID)
		m.metrics.ActiveRooms.Dec()
		m.logger.Debug("Room evicted", zap.String("board_id", boardID))
	}
	return true
}

// Targets returns the room members to fan a frame out to, excluding the
// given connection id. Pass "" to address the whole room.
func (m *RoomManager) Targets(boardID, excludeConnID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rm, ok := m.rooms[boardID]
	if !ok {
		return nil
	}
	targets := make([]*Client, 0, len(rm.clients))
	for id, c := range rm.clients {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

// Presence returns the current presence snapshot of a room.
func (m *RoomManager) Presence(boardID string) []board.PresenceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rm, ok := m.rooms[boardID]
	if !ok {
		return nil
	}
	snapshot := make([]board.PresenceEntry, 0, len(rm.presence))
	for _, e := range rm.presence {
		snapshot = append(snapshot, e)
	}
	return snapshot
}

// RoomCount returns the number of rooms with at least one member.
func (m *RoomManager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
