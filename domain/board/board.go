// Package board holds the collaborative board domain model: boards,
// elements, identities and live presence.
package board

import (
	"time"
)

// Board is a named collaborative document containing elements.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity is a verified user identity, issued by the token verifier and
// immutable afterwards.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// PresenceEntry is one live connection inside a room. Presence is keyed by
// connection id, not identity id: the same identity may hold several
// simultaneous connections (two browser tabs), each with its own entry and
// color.
type PresenceEntry struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	Color        string `json:"color"`
}
