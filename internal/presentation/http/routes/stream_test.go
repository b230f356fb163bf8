package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) dialStream(t *testing.T) map[string]any {
	t.Helper()
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Cookie", e.cookie.Name+"="+e.cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/wizard/stream", header)
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]any
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "stream.hello", hello["kind"])
	return hello
}

func TestStreamHelloDoesNotCreateSession(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/wizard/activity", nil).Code)
	require.NotNil(t, env.cookie)

	hello := env.dialStream(t)
	require.NotContains(t, hello, "state")
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/wizard/activity", nil).Code)

	env.do(t, http.MethodGet, "/api/v1/wizard", nil)
	hello = env.dialStream(t)
	state, ok := hello["state"].(map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, state["sessionId"])
}
