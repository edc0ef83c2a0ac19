package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/mcdev12/tablestakes/go/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopSync struct{}

func (noopSync) BroadcastAction(context.Context, *table.ActionResult)    {}
func (noopSync) BroadcastLifecycle(context.Context, table.LifecycleInfo) {}

func newTestMux() *http.ServeMux {
	app := table.NewApp(table.NewMemoryRepository(), table.NewRegistry(), noopSync{}, table.DefaultAppConfig())
	mux := http.NewServeMux()
	NewHandler(app).RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, mux *http.ServeMux, hostID uuid.UUID) createSessionResponse {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/sessions", createSessionRequest{
		Name:       "friday game",
		SmallBlind: 5,
		BigBlind:   10,
		HostID:     hostID,
		HostName:   "host",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandlerCreateAndGetSession(t *testing.T) {
	mux := newTestMux()
	hostID := uuid.New()

	created := createSession(t, mux, hostID)
	require.NotNil(t, created.Session)
	assert.Len(t, created.ShortID, models.ShortIDLength)

	rec := doJSON(t, mux, http.MethodGet, "/api/sessions/"+created.Session.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, created.Session.ID, got.Session.ID)
}

func TestHandlerJoinByShortID(t *testing.T) {
	mux := newTestMux()
	created := createSession(t, mux, uuid.New())

	rec := doJSON(t, mux, http.MethodPost, "/api/sessions/join", joinSessionRequest{
		SessionID:   created.ShortID,
		UserID:      uuid.New(),
		DisplayName: "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp joinSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.AlreadyJoined)
	assert.Len(t, resp.Session.Participants, 2)
}

func TestHandlerValidateShortID(t *testing.T) {
	mux := newTestMux()
	created := createSession(t, mux, uuid.New())

	rec := doJSON(t, mux, http.MethodGet, "/api/shortids/"+created.ShortID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateShortIDResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Exists)
	assert.Equal(t, created.Session.ID.String(), resp.FullID)

	rec = doJSON(t, mux, http.MethodGet, "/api/shortids/zzzzzz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Exists)
}

func TestHandlerActionErrorMapping(t *testing.T) {
	mux := newTestMux()
	hostID := uuid.New()
	created := createSession(t, mux, hostID)
	sessionPath := "/api/sessions/" + created.Session.ID.String()

	joiner := uuid.New()
	rec := doJSON(t, mux, http.MethodPost, "/api/sessions/join", joinSessionRequest{
		SessionID: created.Session.ID.String(),
		UserID:    joiner,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Acting before start conflicts with session state.
	rec = doJSON(t, mux, http.MethodPost, sessionPath+"/actions", actionRequest{
		UserID: hostID,
		Action: models.ActionCheck,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Starting as a non-host is forbidden.
	rec = doJSON(t, mux, http.MethodPost, sessionPath+"/start", callerRequest{UserID: joiner})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, sessionPath+"/start", callerRequest{UserID: hostID})
	require.Equal(t, http.StatusOK, rec.Code)

	// Raise below double the current bet is a conflict.
	rec = doJSON(t, mux, http.MethodPost, sessionPath+"/actions", actionRequest{
		UserID: hostID,
		Action: models.ActionRaise,
		Amount: 15,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Out-of-turn action is a conflict.
	rec = doJSON(t, mux, http.MethodPost, sessionPath+"/actions", actionRequest{
		UserID: joiner,
		Action: models.ActionCheck,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A valid raise of exactly double succeeds.
	rec = doJSON(t, mux, http.MethodPost, sessionPath+"/actions", actionRequest{
		UserID: hostID,
		Action: models.ActionRaise,
		Amount: 20,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerUnknownSession(t *testing.T) {
	mux := newTestMux()

	rec := doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/sessions/%s", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/sessions/%s/end", uuid.New()), callerRequest{UserID: uuid.New()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
