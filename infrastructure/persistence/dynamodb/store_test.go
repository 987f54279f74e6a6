package dynamodb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"boardsync-backend/domain/board"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "BOARD#b1", boardPK("b1"))
	assert.Equal(t, "MEMBER#alice", memberSK("alice"))
	assert.Equal(t, "ELEMENT#e1", elementSK("e1"))
	assert.Equal(t, "USER#alice", userGSIPK("alice"))
}

func TestDDBBoardConversion(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	item := ddbBoard{
		PK:        boardPK("b1"),
		SK:        skMeta,
		BoardID:   "b1",
		Name:      "Roadmap",
		OwnerID:   "alice",
		CreatedAt: created.Format(time.RFC3339Nano),
		UpdatedAt: created.Format(time.RFC3339Nano),
	}

	b := item.toBoard()
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, "Roadmap", b.Name)
	assert.Equal(t, "alice", b.OwnerID)
	assert.True(t, b.CreatedAt.Equal(created))
}

func TestDDBElementConversion(t *testing.T) {
	updated := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	item := ddbElement{
		PK:        boardPK("b1"),
		SK:        elementSK("e1"),
		ElementID: "e1",
		BoardID:   "b1",
		Type:      "note",
		Content:   `{"text":"hi"}`,
		UpdatedAt: updated.Format(time.RFC3339Nano),
	}

	el := item.toElement()
	assert.Equal(t, "e1", el.ID)
	assert.Equal(t, board.ElementTypeNote, el.Type)
	assert.Equal(t, json.RawMessage(`{"text":"hi"}`), el.Content)
	// Absent payloads stay nil rather than becoming empty strings
	assert.Nil(t, el.Position)
	assert.Nil(t, el.Style)
	assert.True(t, el.UpdatedAt.Equal(updated))
}
