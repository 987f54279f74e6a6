package board

import (
	"encoding/json"
	"fmt"
	"time"
)

// ElementType identifies the kind of visual element on a board.
type ElementType string

const (
	ElementTypeNote      ElementType = "note"
	ElementTypeCard      ElementType = "card"
	ElementTypeConnector ElementType = "connector"
)

// ParseElementType validates a raw element type string
func ParseElementType(raw string) (ElementType, error) {
	switch ElementType(raw) {
	case ElementTypeNote, ElementTypeCard, ElementTypeConnector:
		return ElementType(raw), nil
	default:
		return "", fmt.Errorf("unknown element type: %q", raw)
	}
}

// Element is a positioned visual unit on a board. Content, position and
// style are opaque payloads relayed verbatim; the server only assigns the
// id and the update timestamp. Connector elements reference their endpoint
// element ids inside Content and are not checked for referential integrity.
type Element struct {
	ID        string          `json:"id"`
	BoardID   string          `json:"boardId"`
	Type      ElementType     `json:"type"`
	Content   json.RawMessage `json:"content,omitempty"`
	Position  json.RawMessage `json:"position,omitempty"`
	Style     json.RawMessage `json:"style,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ElementPatch carries the client-supplied fields of an update. Nil fields
// are left unchanged by the store.
type ElementPatch struct {
	ID       string
	BoardID  string
	Content  json.RawMessage
	Position json.RawMessage
	Style    json.RawMessage
}
