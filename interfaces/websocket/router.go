package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boardsync-backend/application/ports"
	"boardsync-backend/domain/board"
	"boardsync-backend/internal/config"
	apperrors "boardsync-backend/pkg/errors"
	"boardsync-backend/pkg/observability"
)

// Router drives the connection state machine and fans events out to
// rooms. Events for the same board are serialized end to end, storage
// calls included, under a per-board lock; events for different boards run
// concurrently.
type Router struct {
	registry  *Registry
	rooms     *RoomManager
	store     ports.Store
	publisher ports.EventPublisher
	dynamic   *config.DynamicHolder
	locks     *boardLocks
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewRouter wires the router against its collaborators.
func NewRouter(
	registry *Registry,
	rooms *RoomManager,
	store ports.Store,
	publisher ports.EventPublisher,
	dynamic *config.DynamicHolder,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		registry:  registry,
		rooms:     rooms,
		store:     store,
		publisher: publisher,
		dynamic:   dynamic,
		locks:     newBoardLocks(),
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleFrame processes one inbound frame. It is called sequentially from
// the connection's read pump, so frames from a single connection are
// handled in arrival order. A panic in one event must not take the server
// down with it.
func (r *Router) HandleFrame(ctx context.Context, c *Client, frame Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic while handling frame",
				zap.Any("panic", rec),
				zap.String("connection_id", c.ID),
				zap.String("type", string(frame.Type)),
			)
			c.Send(errorFrame(CodeInternalError, "internal error"))
		}
	}()

	r.metrics.EventsReceived.WithLabelValues(string(frame.Type)).Inc()

	switch frame.Type {
	case MessageAuthenticate:
		r.handleAuthenticate(c, frame.Payload)
	case MessageJoin:
		r.handleJoin(ctx, c, frame.Payload)
	case MessageLeave:
		r.handleLeave(c)
	case MessageCreateElement:
		r.handleCreateElement(ctx, c, frame.Payload)
	case MessageUpdateElement:
		r.handleUpdateElement(ctx, c, frame.Payload)
	case MessageDeleteElement:
		r.handleDeleteElement(ctx, c, frame.Payload)
	case MessageCursorMove:
		r.handleCursorMove(c, frame.Payload)
	default:
		c.Send(errorFrame(CodeValidationError, "unknown message type: "+string(frame.Type)))
	}
}

// handleAuthenticate runs the one-shot credential exchange. Failure
// terminates the connection; protocol misuse does not.
func (r *Router) handleAuthenticate(c *Client, raw json.RawMessage) {
	if _, ok := r.registry.Identity(c.ID); ok {
		c.Send(errorFrame(CodeAlreadyAuthenticated, "connection already authenticated"))
		return
	}

	var payload AuthenticatePayload
	if err := decodePayload(raw, &payload); err != nil {
		c.Send(errorFrame(CodeValidationError, err.Error()))
		return
	}

	identity, err := r.registry.Authenticate(c.ID, payload.Token)
	if err != nil {
		if apperrors.IsConflict(err) {
			c.Send(errorFrame(CodeAlreadyAuthenticated, "connection already authenticated"))
			return
		}
		r.metrics.AuthFailures.Inc()
		r.logger.Warn("Authentication failed",
			zap.String("connection_id", c.ID),
			zap.Error(err),
		)
		c.Send(errorFrame(CodeAuthFailed, "authentication failed"))
		c.Close()
		return
	}

	limits := r.dynamic.Current().WebSocket
	if limits.MaxConnectionsPerUser > 0 && r.registry.CountForUser(identity.ID) > limits.MaxConnectionsPerUser {
		r.logger.Warn("Per-user connection limit exceeded",
			zap.String("user_id", identity.ID),
			zap.Int("limit", limits.MaxConnectionsPerUser),
		)
		c.Send(errorFrame(CodeConnectionLimit, "too many connections for user"))
		c.Close()
		return
	}

	r.logger.Info("Connection authenticated",
		zap.String("connection_id", c.ID),
		zap.String("user_id", identity.ID),
	)
}

// handleJoin authorizes the user against board membership, seeds the
// joiner with the element set and presence snapshot, and only then
// announces it to the room. The board lock guarantees the joiner cannot
// observe a mutation that is missing from its snapshot.
func (r *Router) handleJoin(ctx context.Context, c *Client, raw json.RawMessage) {
	identity, ok := r.registry.Identity(c.ID)
	if !ok {
		c.Send(errorFrame(CodeNotAuthenticated, "authenticate first"))
		return
	}
	if roomID := r.registry.RoomID(c.ID); roomID != "" {
		c.Send(errorFrame(CodeAlreadyInRoom, "already in room "+roomID))
		return
	}

	var payload JoinPayload
	if err := decodePayload(raw, &payload); err != nil {
		c.Send(errorFrame(CodeValidationError, err.Error()))
		return
	}

	release := r.locks.acquire(payload.BoardID)
	defer release()

	member, err := r.store.IsMember(ctx, payload.BoardID, identity.ID)
	if err != nil {
		r.storageError(c, "membership check failed", err)
		return
	}
	if !member {
		r.logger.Warn("Join denied",
			zap.String("board_id", payload.BoardID),
			zap.String("user_id", identity.ID),
		)
		c.Send(errorFrame(CodeAuthorizationDenied, "not a member of this board"))
		return
	}

	elements, err := r.store.ListElements(ctx, payload.BoardID)
	if err != nil {
		r.storageError(c, "element load failed", err)
		return
	}

	if err := r.registry.BindRoom(c.ID, payload.BoardID); err != nil {
		// The connection raced a disconnect or a concurrent join.
		c.Send(errorFrame(CodeAlreadyInRoom, "join rejected"))
		return
	}
	entry, snapshot := r.rooms.Join(payload.BoardID, c, identity)

	c.Send(newFrame(MessageJoined, JoinedPayload{
		BoardID:  payload.BoardID,
		Color:    entry.Color,
		Presence: snapshot,
		Elements: elements,
	}))
	r.broadcast(payload.BoardID, c.ID, newFrame(MessagePresenceJoined, PresenceJoinedPayload{Entry: entry}), false)
}

// handleLeave removes the connection from its room. Leaving without a
// room is a no-op.
func (r *Router) handleLeave(c *Client) {
	boardID := r.registry.RoomID(c.ID)
	if boardID == "" {
		c.Send(errorFrame(CodeNotInRoom, "not in a room"))
		return
	}
	r.departRoom(c, boardID)
}

// HandleDisconnect runs the full cleanup for a closed connection. It is
// idempotent: the registry removal reports the room at most once, so the
// departure broadcast cannot double-fire.
func (r *Router) HandleDisconnect(c *Client) {
	boardID := r.registry.Remove(c.ID)
	if boardID != "" {
		release := r.locks.acquire(boardID)
		if r.rooms.Leave(boardID, c.ID) {
			r.broadcast(boardID, c.ID, newFrame(MessagePresenceLeft, PresenceLeftPayload{ConnectionID: c.ID}), false)
		}
		release()
	}
	c.Close()
	r.metrics.ActiveConnections.Set(float64(r.registry.Count()))
}

func (r *Router) departRoom(c *Client, boardID string) {
	release := r.locks.acquire(boardID)
	defer release()

	r.registry.UnbindRoom(c.ID)
	if r.rooms.Leave(boardID, c.ID) {
		r.broadcast(boardID, c.ID, newFrame(MessagePresenceLeft, PresenceLeftPayload{ConnectionID: c.ID}), false)
	}
}

// handleCreateElement persists a new element and echoes it to the whole
// room, sender included. The broadcast only happens after the write
// succeeds.
func (r *Router) handleCreateElement(ctx context.Context, c *Client, raw json.RawMessage) {
	boardID, identity, ok := r.requireRoom(c)
	if !ok {
		return
	}

	var payload CreateElementPayload
	if err := decodePayload(raw, &payload); err != nil {
		c.Send(errorFrame(CodeValidationError, err.Error()))
		return
	}
	elementType, err := board.ParseElementType(payload.Type)
	if err != nil {
		c.Send(errorFrame(CodeValidationError, err.Error()))
		return
	}

	release := r.locks.acquire(boardID)
	defer release()

	el := board.Element{
		ID:        uuid.New().String(),
		BoardID:   boardID,
		Type:      elementType,
		Content:   payload.Content,
		Position:  payload.Position,
		Style:     payload.Style,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.store.InsertElement(ctx, el); err != nil {
		r.storageError(c, "element create failed", err)
		return
	}

	r.broadcast(boardID, "", newFrame(MessageElementCreated, el), false)
	r.publish("element.created", boardID, el.ID, identity.ID, el)
}

// handleUpdateElement applies a partial update and broadcasts the stored
// element so every member converges on what persistence actually holds.
func (r *Router) handleUpdateElement(ctx context.Context, c *Client, raw json.RawMessage) {
	boardID, identity, ok := r.requireRoom(c)
	if !ok {
		return
	}

	var payload UpdateElementPayload
	if err := decodePayload(raw, &payload); err != nil {
		c.Send(errorFrame(CodeValidationError, err.Error()))
		return
	}

	release := r.locks.acquire(boardID)
	defer release()

	el, err := r.store.UpdateElement(ctx, board.ElementPatch{
		ID:       payload.ID,
		BoardID:  boardID,
		Content:  payload.Content,
		Position: payload.Position,
		Style:    payload.Style,
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.Send(errorFrame(CodeNotFound, "element not found: "+payload.ID))
			return
		}
		r.storageError(c, "element update failed", err)
		return
	}

	r.broadcast(boardID, "", newFrame(MessageElementUpdated, el), false)
	r.publish("element.updated", boardID, el.ID, identity.ID, el)
}

// handleDeleteElement removes the element and tells the whole room.
func (r *Router) handleDeleteElement(ctx context.Context, c *Client, raw json.RawMessage) {
	boardID, identity, ok := r.requireRoom(c)
	if !ok {
		return
	}

	var payload DeleteElementPayload
	if err := decodePayload(raw, &payload); err != nil {
		c.Send(errorFrame(CodeValidationError, err.Error()))
		return
	}

	release := r.locks.acquire(boardID)
	defer release()

	if err := r.store.DeleteElement(ctx, boardID, payload.ID); err != nil {
		r.storageError(c, "element delete failed", err)
		return
	}

	r.broadcast(boardID, "", newFrame(MessageElementDeleted, ElementDeletedPayload{ID: payload.ID}), false)
	r.publish("element.deleted", boardID, payload.ID, identity.ID, nil)
}

// handleCursorMove relays the cursor to everyone else in the room. The
// stream is ephemeral: never persisted, and droppable under backpressure
// without closing the receiver.
func (r *Router) handleCursorMove(c *Client, raw json.RawMessage) {
	boardID, _, ok := r.requireRoom(c)
	if !ok {
		return
	}

	var payload CursorMovePayload
	if err := decodePayload(raw, &payload); err != nil {
		c.Send(errorFrame(CodeValidationError, err.Error()))
		return
	}

	release := r.locks.acquire(boardID)
	defer release()

	r.broadcast(boardID, c.ID, newFrame(MessageCursorUpdate, CursorUpdatePayload{
		ConnectionID: c.ID,
		Position:     payload.Position,
	}), true)
}

// requireRoom resolves the sender's room and identity, emitting the
// appropriate protocol error when either is missing. Authorization is
// settled before any payload is decoded or any side effect runs.
func (r *Router) requireRoom(c *Client) (string, board.Identity, bool) {
	identity, ok := r.registry.Identity(c.ID)
	if !ok {
		c.Send(errorFrame(CodeNotAuthenticated, "authenticate first"))
		return "", board.Identity{}, false
	}
	boardID := r.registry.RoomID(c.ID)
	if boardID == "" {
		c.Send(errorFrame(CodeNotInRoom, "join a board first"))
		return "", board.Identity{}, false
	}
	return boardID, identity, true
}

// broadcast marshals the frame once and fans it out to the room,
// excluding excludeConnID when non-empty. Droppable frames are shed
// silently on full queues; for everything else a full queue means the
// client is too far behind to keep a consistent view, and it is closed.
func (r *Router) broadcast(boardID, excludeConnID string, frame Frame, droppable bool) {
	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("Failed to marshal broadcast frame", zap.Error(err))
		return
	}

	for _, target := range r.rooms.Targets(boardID, excludeConnID) {
		if target.enqueue(data) {
			r.metrics.BroadcastsSent.Inc()
			continue
		}
		r.metrics.BroadcastsDropped.Inc()
		if !droppable {
			r.logger.Warn("Closing slow client",
				zap.String("connection_id", target.ID),
				zap.String("board_id", boardID),
			)
			target.Close()
		}
	}
}

func (r *Router) storageError(c *Client, message string, err error) {
	r.metrics.StorageErrors.Inc()
	r.logger.Error(message, zap.String("connection_id", c.ID), zap.Error(err))
	c.Send(errorFrame(CodeStorageError, message))
}

// publish emits an integration event without blocking the room. Delivery
// failures are logged and otherwise ignored.
func (r *Router) publish(eventType, boardID, elementID, userID string, payload interface{}) {
	event := ports.IntegrationEvent{
		Type:      eventType,
		BoardID:   boardID,
		ElementID: elementID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			event.Payload = data
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("Integration event publish failed",
				zap.String("type", eventType),
				zap.String("board_id", boardID),
				zap.Error(err),
			)
		}
	}()
}
