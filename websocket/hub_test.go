package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func echoServer(hub *Hub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.RegisterClient(conn, "u1", "s1")
		client.OnText = func(c *Client, data []byte) {
			c.SendJSON(map[string]string{"echo": string(data)})
		}
		client.OnBinary = func(c *Client, data []byte) {
			c.SendJSON(map[string]int{"bytes": len(data)})
		}
		go client.WritePump()
		client.ReadPump()
	}))
}

func TestHubTracksClients(t *testing.T) {
	hub, _ := startHub(t)
	srv := echoServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	assert.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	var got map[string]string
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "hi", got["echo"])

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 640)))
	var size map[string]int
	require.NoError(t, conn.ReadJSON(&size))
	assert.Equal(t, 640, size["bytes"])

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	srv := echoServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRegisterAfterShutdown(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()
	<-hub.stopped

	client := hub.RegisterClient(nil, "u1", "s1")
	select {
	case <-client.done:
	default:
		t.Fatal("client should be shut down")
	}
	// Dropped silently.
	client.SendJSON(map[string]string{"type": "late"})
}

func TestReject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		Reject(conn, CloseUnauthorized, "Invalid token")
	}))
	defer srv.Close()

	conn := dial(t, srv)
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CloseUnauthorized, ce.Code)
	assert.Equal(t, "Invalid token", ce.Text)
}

func TestCloseFlushesQueuedMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, "u1", "s1")
		client.SendJSON(map[string]string{"type": "session.completed"})
		client.Close(CloseNotFound, "Session not found")
		client.WritePump()
	}))
	defer srv.Close()

	conn := dial(t, srv)
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "session.completed", msg["type"])

	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CloseNotFound, ce.Code)
}
