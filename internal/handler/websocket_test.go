package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/middleware"
	"github.com/gfearing/fearings-services/internal/websocket"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushedMessage struct {
	Type string             `json:"type"`
	Data estimator.Snapshot `json:"data"`
}

func readPushed(t *testing.T, conn *gorilla.Conn) pushedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg pushedMessage
	require.NoError(t, json.Unmarshal(data, &msg), string(data))
	return msg
}

func TestWebSocketPushesEstimateStates(t *testing.T) {
	gen := &stubGenerator{reply: lawnReply}
	env := newTestEnv(t, gen, true)
	cookie, token := env.visit(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	header := http.Header{}
	header.Add("Cookie", cookie.Name+"="+cookie.Value)
	conn, resp, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// Welcome first, then the state read at registration
	welcome := readPushed(t, conn)
	assert.Equal(t, websocket.TypeConnection, welcome.Type)
	current := readPushed(t, conn)
	assert.Equal(t, websocket.TypeEstimateState, current.Type)
	assert.Equal(t, estimator.StatusIdle, current.Data.Status)
	assert.Equal(t, 1, env.hub.GetSessionConnectionCount(cookie.Value))

	rec := env.post(cookie, token, `{"job_description":"mow my small front lawn"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	loading := readPushed(t, conn)
	assert.Equal(t, websocket.TypeEstimateState, loading.Type)
	assert.Equal(t, estimator.StatusLoading, loading.Data.Status)

	done := readPushed(t, conn)
	assert.Equal(t, estimator.StatusSuccess, done.Data.Status)
	require.NotNil(t, done.Data.Estimate)
	assert.Equal(t, "$17", done.Data.Estimate.SuggestedPrice)
}

func TestWebSocketRejectsCrossOrigin(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: lawnReply}, true)
	cookie, _ := env.visit(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	header := http.Header{}
	header.Add("Cookie", cookie.Name+"="+cookie.Value)
	header.Add("Origin", "https://evil.example")
	_, resp, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 0, env.hub.GetConnectionCount())
}

func TestConnectionStats(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: lawnReply}, true)
	cookie, _ := env.visit(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ws/stats", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_connections":0`)
	assert.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, middleware.SessionCookieName, rec.Result().Cookies()[0].Name)
}
