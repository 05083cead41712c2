package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oneoftools/internal/models"
)

func dial(t *testing.T, server *httptest.Server, slug string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?slug=" + slug
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

func waitForSubscribers(t *testing.T, hub *Hub, slug string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(slug) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsPerSlug(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("slug"))
	}))
	defer server.Close()

	one := dial(t, server, "one")
	two := dial(t, server, "two")
	assert.Equal(t, "connected", readMessage(t, one).Type)
	assert.Equal(t, "connected", readMessage(t, two).Type)
	waitForSubscribers(t, hub, "one", 1)
	waitForSubscribers(t, hub, "two", 1)

	event := &models.NFTEvent{CollectionSlug: "one"}
	event.Signature = "sig"
	event.Type = models.NFTEventSale
	hub.Broadcast("one", event)

	msg := readMessage(t, one)
	assert.Equal(t, "activity", msg.Type)
	assert.Equal(t, "one", msg.Slug)
	require.NotNil(t, msg.Data)
	assert.Equal(t, "sig", msg.Data.Signature)

	two.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := two.ReadMessage()
	assert.Error(t, err)
}

func TestHubRemovesClosedSubscribers(t *testing.T) {
	hub := NewHub([]string{"https://1of1.tools"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "one")
	}))
	defer server.Close()

	conn := dial(t, server, "one")
	readMessage(t, conn)
	waitForSubscribers(t, hub, "one", 1)

	conn.Close()
	waitForSubscribers(t, hub, "one", 0)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"https://1of1.tools"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "one")
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Subscribers("one"))
}
