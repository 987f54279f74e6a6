package websocket

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"boardsync-backend/domain/board"
)

// MessageType tags every frame crossing the wire. The set is closed:
// unknown types are rejected at the boundary before reaching the router.
type MessageType string

const (
	// Client -> server
	MessageAuthenticate  MessageType = "authenticate"
	MessageJoin          MessageType = "join"
	MessageLeave         MessageType = "leave"
	MessageCreateElement MessageType = "create_element"
	MessageUpdateElement MessageType = "update_element"
	MessageDeleteElement MessageType = "delete_element"
	MessageCursorMove    MessageType = "cursor_move"

	// Server -> client
	MessageConnectionEstablished MessageType = "connection_established"
	MessageJoined                MessageType = "joined"
	MessagePresenceJoined        MessageType = "presence_joined"
	MessagePresenceLeft          MessageType = "presence_left"
	MessageElementCreated        MessageType = "element_created"
	MessageElementUpdated        MessageType = "element_updated"
	MessageElementDeleted        MessageType = "element_deleted"
	MessageCursorUpdate          MessageType = "cursor_update"
	MessageError                 MessageType = "error"
)

// Error codes carried in error frames.
const (
	CodeAuthFailed           = "AUTH_FAILED"
	CodeAuthorizationDenied  = "AUTHORIZATION_DENIED"
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
	CodeAlreadyInRoom        = "ALREADY_IN_ROOM"
	CodeNotInRoom            = "NOT_IN_ROOM"
	CodeConnectionLimit      = "CONNECTION_LIMIT"
	CodeNotFound             = "NOT_FOUND"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeStorageError         = "STORAGE_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Frame is the envelope for every message in both directions.
type Frame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> server payloads

// AuthenticatePayload carries the opaque credential.
type AuthenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

// JoinPayload requests membership of a board room.
type JoinPayload struct {
	BoardID string `json:"boardId" validate:"required"`
}

// CreateElementPayload creates a new element. Any client-proposed id is
// ignored; the server is authoritative.
type CreateElementPayload struct {
	Type     string          `json:"type" validate:"required,oneof=note card connector"`
	Content  json.RawMessage `json:"content,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
	Style    json.RawMessage `json:"style,omitempty"`
}

// UpdateElementPayload updates an existing element; nil fields are left
// unchanged.
type UpdateElementPayload struct {
	ID       string          `json:"id" validate:"required"`
	Content  json.RawMessage `json:"content,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
	Style    json.RawMessage `json:"style,omitempty"`
}

// DeleteElementPayload removes an element by id.
type DeleteElementPayload struct {
	ID string `json:"id" validate:"required"`
}

// CursorMovePayload is the ephemeral cursor stream; never persisted.
type CursorMovePayload struct {
	Position json.RawMessage `json:"position" validate:"required"`
}

// Server -> client payloads

// ConnectionEstablishedPayload tells the client its connection id.
type ConnectionEstablishedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// JoinedPayload seeds a joining connection with the room state. Presence
// includes the joiner's own entry; Color repeats its assigned color.
type JoinedPayload struct {
	BoardID  string                `json:"boardId"`
	Color    string                `json:"color"`
	Presence []board.PresenceEntry `json:"presence"`
	Elements []board.Element       `json:"elements"`
}

// PresenceJoinedPayload announces a new room member to everyone else.
type PresenceJoinedPayload struct {
	Entry board.PresenceEntry `json:"entry"`
}

// PresenceLeftPayload announces a departure.
type PresenceLeftPayload struct {
	ConnectionID string `json:"connectionId"`
}

// ElementDeletedPayload carries the bare id of a deleted element.
type ElementDeletedPayload struct {
	ID string `json:"id"`
}

// CursorUpdatePayload relays another connection's cursor position.
type CursorUpdatePayload struct {
	ConnectionID string          `json:"connectionId"`
	Position     json.RawMessage `json:"position"`
}

// ErrorPayload is a scoped error delivered to a single connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload unmarshals and validates an inbound payload before it may
// enter the router.
func decodePayload(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// newFrame builds a frame with a marshaled payload. Marshal failures are
// programming errors on server-owned types; they degrade to an empty
// payload.
func newFrame(messageType MessageType, payload interface{}) Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{Type: messageType}
	}
	return Frame{Type: messageType, Payload: data}
}

// errorFrame builds a scoped error frame.
func errorFrame(code, message string) Frame {
	return newFrame(MessageError, ErrorPayload{Code: code, Message: message})
}
