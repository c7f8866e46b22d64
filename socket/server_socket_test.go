package socket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, options ...ServerOption) (*ServerSocketManager, *httptest.Server) {
	t.Helper()
	s, err := NewServerSocketManager(options...)
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		s.Stop()
		srv.Close()
	})
	return s, srv
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f := read(t, conn)
	require.Equal(t, ConnectedType, f.Type)
	var data connected
	require.NoError(t, json.Unmarshal(f.Data, &data))
	require.NotEmpty(t, data.ConnectionID)
	return conn, data.ConnectionID
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServerSocketManager_RequestAck(t *testing.T) {
	type call struct {
		connID string
		intent string
		data   string
	}
	calls := make(chan call, 4)
	handler := func(ctx context.Context, connID, intent string, data json.RawMessage) any {
		calls <- call{connID: connID, intent: intent, data: string(data)}
		return map[string]any{"ok": intent == "create_room"}
	}
	_, srv := startServer(t, ServerWithClientRequestHandler(handler))
	conn, id := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":7,"type":"create_room","data":{"name":"Ada"}}`)))
	ack := read(t, conn)
	assert.Equal(t, AckType, ack.Type)
	assert.JSONEq(t, `7`, string(ack.ID))
	assert.JSONEq(t, `{"ok":true}`, string(ack.Data))

	got := <-calls
	assert.Equal(t, id, got.connID)
	assert.Equal(t, "create_room", got.intent)
	assert.JSONEq(t, `{"name":"Ada"}`, got.data)

	t.Run("malformed frame reaches the handler without an intent", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
		ack := read(t, conn)
		assert.Equal(t, AckType, ack.Type)
		assert.JSONEq(t, `{"ok":false}`, string(ack.Data))
		assert.Empty(t, (<-calls).intent)
	})
}

func TestServerSocketManager_Broadcast(t *testing.T) {
	s, srv := startServer(t)
	a, aID := dial(t, srv)
	b, bID := dial(t, srv)
	_, cID := dial(t, srv)

	s.Subscribe("123456", aID)
	s.Subscribe("123456", bID)
	s.Subscribe("654321", cID)
	s.Subscribe("123456", "unknown")
	assert.Equal(t, 2, s.Subscribers("123456"))

	s.Broadcast("123456", []byte(`{"type":"room_update","data":{"code":"123456"}}`))
	for _, conn := range []*websocket.Conn{a, b} {
		f := read(t, conn)
		assert.Equal(t, "room_update", f.Type)
		assert.JSONEq(t, `{"code":"123456"}`, string(f.Data))
	}

	s.Unsubscribe("123456", aID)
	assert.Equal(t, 1, s.Subscribers("123456"))
	s.Unsubscribe("123456", bID)
	assert.Equal(t, 0, s.Subscribers("123456"))
}

func TestServerSocketManager_Disconnect(t *testing.T) {
	gone := make(chan string, 1)
	s, srv := startServer(t, ServerWithClientDisconnectHandler(func(connID string) { gone <- connID }))
	conn, id := dial(t, srv)
	s.Subscribe("123456", id)

	require.NoError(t, conn.Close())

	select {
	case got := <-gone:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect handler was not called")
	}
	assert.Equal(t, 0, s.Subscribers("123456"))
}

func TestServerSocketManager_ReadLimit(t *testing.T) {
	gone := make(chan string, 1)
	_, srv := startServer(t,
		ServerWithReadLimit(64),
		ServerWithClientDisconnectHandler(func(connID string) { gone <- connID }),
	)
	conn, id := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 200))))

	select {
	case got := <-gone:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatal("oversized frame did not close the connection")
	}
}

func TestServerSocketManager_Stop(t *testing.T) {
	gone := make(chan string, 2)
	s, err := NewServerSocketManager(ServerWithClientDisconnectHandler(func(connID string) { gone <- connID }))
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn, id := dial(t, srv)
	s.Stop()

	assert.Equal(t, id, <-gone)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}
