package websocket

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promogate/internal/promo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubSendsConnectionMessage(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	conn := dialHub(t, hub)
	msg := readMessage(t, conn)
	assert.Equal(t, TypeConnection, msg.Type)
}

func TestHubBroadcastsGrantChanges(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	conn := dialHub(t, hub)
	readMessage(t, conn) // connection handshake

	hub.GrantChanged(promo.EntitlementGrant{Type: promo.GrantLifetime})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeGrantChanged, msg.Type)

	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "lifetime", payload["type"])
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	first := dialHub(t, hub)
	second := dialHub(t, hub)
	readMessage(t, first)
	readMessage(t, second)

	hub.Broadcast(TypeGrantChanged, promo.EntitlementGrant{Type: promo.GrantMonthly})

	assert.Equal(t, TypeGrantChanged, readMessage(t, first).Type)
	assert.Equal(t, TypeGrantChanged, readMessage(t, second).Type)
}
