package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"boardsync-backend/domain/board"
	"boardsync-backend/infrastructure/persistence/memory"
	"boardsync-backend/internal/config"
	"boardsync-backend/pkg/auth"
	"boardsync-backend/pkg/observability"
)

type restEnv struct {
	store  *memory.Store
	jwt    *auth.JWTService
	server *httptest.Server
}

func newRestEnv(t *testing.T) *restEnv {
	t.Helper()

	cfg := &config.Config{
		Environment: "development",
		EnableCORS:  false,
	}
	store := memory.NewStore()
	jwtService := auth.NewJWTService("rest-test-secret", "boardsync-test", time.Hour)
	metrics := observability.NewCollector("test")

	wsStub := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}
	router := NewRouter(cfg, store, jwtService, wsStub, metrics.Handler(), zap.NewNop())

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return &restEnv{store: store, jwt: jwtService, server: server}
}

func (e *restEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *restEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID, userID)
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestCreateAndGetBoard(t *testing.T) {
	env := newRestEnv(t)
	token := env.token(t, "alice")

	resp := env.request(t, http.MethodPost, "/api/v1/boards", token, map[string]string{"name": "Roadmap"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created board.Board
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Roadmap", created.Name)
	assert.Equal(t, "alice", created.OwnerID)

	resp = env.request(t, http.MethodGet, "/api/v1/boards/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched board.Board
	decodeBody(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
}

func TestBoardsRequireAuthentication(t *testing.T) {
	env := newRestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/v1/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/v1/boards", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateBoardValidatesName(t *testing.T) {
	env := newRestEnv(t)
	token := env.token(t, "alice")

	resp := env.request(t, http.MethodPost, "/api/v1/boards", token, map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNonMemberCannotSeeBoard(t *testing.T) {
	env := newRestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/boards", env.token(t, "alice"), map[string]string{"name": "Private"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created board.Board
	decodeBody(t, resp, &created)

	resp = env.request(t, http.MethodGet, "/api/v1/boards/"+created.ID, env.token(t, "mallory"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMembershipGrantsAccess(t *testing.T) {
	env := newRestEnv(t)
	owner := env.token(t, "alice")
	bobToken := env.token(t, "bob")

	resp := env.request(t, http.MethodPost, "/api/v1/boards", owner, map[string]string{"name": "Shared"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created board.Board
	decodeBody(t, resp, &created)

	// Only the owner may add members
	resp = env.request(t, http.MethodPost, "/api/v1/boards/"+created.ID+"/members", bobToken, map[string]string{"userId": "bob"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/v1/boards/"+created.ID+"/members", owner, map[string]string{"userId": "bob"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/v1/boards/"+created.ID, bobToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Revocation shuts the door again
	resp = env.request(t, http.MethodDelete, "/api/v1/boards/"+created.ID+"/members/bob", owner, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.request(t, http.MethodGet, "/api/v1/boards/"+created.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOwnerMembershipCannotBeRemoved(t *testing.T) {
	env := newRestEnv(t)
	owner := env.token(t, "alice")

	resp := env.request(t, http.MethodPost, "/api/v1/boards", owner, map[string]string{"name": "Mine"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created board.Board
	decodeBody(t, resp, &created)

	resp = env.request(t, http.MethodDelete, "/api/v1/boards/"+created.ID+"/members/alice", owner, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteBoardIsOwnerOnly(t *testing.T) {
	env := newRestEnv(t)
	owner := env.token(t, "alice")

	resp := env.request(t, http.MethodPost, "/api/v1/boards", owner, map[string]string{"name": "Doomed"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created board.Board
	decodeBody(t, resp, &created)

	require.NoError(t, env.store.AddMember(context.Background(), created.ID, "bob"))
	resp = env.request(t, http.MethodDelete, "/api/v1/boards/"+created.ID, env.token(t, "bob"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, "/api/v1/boards/"+created.ID, owner, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/v1/boards/"+created.ID, owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListElementsSnapshot(t *testing.T) {
	env := newRestEnv(t)
	owner := env.token(t, "alice")

	resp := env.request(t, http.MethodPost, "/api/v1/boards", owner, map[string]string{"name": "Canvas"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created board.Board
	decodeBody(t, resp, &created)

	require.NoError(t, env.store.InsertElement(context.Background(), board.Element{
		ID: "e1", BoardID: created.ID, Type: board.ElementTypeNote,
		Content: json.RawMessage(`{"text":"hello"}`),
	}))

	resp = env.request(t, http.MethodGet, "/api/v1/boards/"+created.ID+"/elements", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var elements []board.Element
	decodeBody(t, resp, &elements)
	require.Len(t, elements, 1)
	assert.Equal(t, "e1", elements[0].ID)
}

func TestDevTokenMint(t *testing.T) {
	env := newRestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"userId":      "carol",
		"displayName": "Carol",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var minted struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &minted)
	require.NotEmpty(t, minted.Token)

	// The minted token works against the protected surface
	resp = env.request(t, http.MethodGet, "/api/v1/boards", minted.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProbesAndMetrics(t *testing.T) {
	env := newRestEnv(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp := env.request(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
