package collab

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
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/coderoom/metrics"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, server *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn}
	env := c.expect(EventConnected)
	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	c.id = data["socketId"]
	require.NotEmpty(t, c.id)
	return c
}

func (c *testClient) send(event string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func (c *testClient) expect(event string) Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	require.Equal(c.t, event, env.Event, "payload: %s", env.Data)
	return env
}

// expectNothing leaves the connection unusable after the read times out
func (c *testClient) expectNothing() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var env Envelope
	err := c.conn.ReadJSON(&env)
	require.Error(c.t, err, "unexpected event %s", env.Event)
}

func decodeMembers(t *testing.T, env Envelope) []Member {
	t.Helper()
	var members []Member
	require.NoError(t, json.Unmarshal(env.Data, &members))
	return members
}

func newTestHub(t *testing.T) (*Hub, *Store, *httptest.Server) {
	t.Helper()
	store := NewStore()
	hub := NewHub(zaptest.NewLogger(t), store, WithHubMetrics(metrics.NewCollector()))
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	return hub, store, server
}

func TestHubJoinAndRelay(t *testing.T) {
	_, store, server := newTestHub(t)

	alice := dial(t, server)
	alice.send(EventJoinRoom, map[string]any{"roomId": "r1", "user": map[string]string{"id": "alice", "name": "Alice"}})
	members := decodeMembers(t, alice.expect(EventPresenceUpdate))
	assert.Equal(t, []string{"alice"}, memberIDs(members))

	bob := dial(t, server)
	bob.send(EventJoinRoom, map[string]any{"roomId": "r1", "user": map[string]string{"id": "bob", "name": "Bob"}})

	joined := alice.expect(EventUserJoined)
	assert.JSONEq(t, `{"userId":"bob","socketId":"`+bob.id+`"}`, string(joined.Data))
	assert.Equal(t, []string{"alice", "bob"}, memberIDs(decodeMembers(t, alice.expect(EventPresenceUpdate))))
	assert.Equal(t, []string{"alice", "bob"}, memberIDs(decodeMembers(t, bob.expect(EventPresenceUpdate))))

	t.Run("CodeChangeSkipsSender", func(t *testing.T) {
		alice.send(EventCodeChange, map[string]string{"roomId": "r1", "fileId": "f1", "code": "print(1)"})
		update := bob.expect(EventCodeUpdate)
		assert.JSONEq(t, `{"fileId":"f1","code":"print(1)"}`, string(update.Data))
		// alice's next read in the following subtest must be file-renamed
	})

	t.Run("FileEventsReachEveryone", func(t *testing.T) {
		bob.send(EventFileRename, map[string]string{"roomId": "r1", "fileId": "f1", "newName": "app.py"})
		for _, c := range []*testClient{alice, bob} {
			env := c.expect(EventFileRenamed)
			assert.JSONEq(t, `{"fileId":"f1","newName":"app.py"}`, string(env.Data))
		}

		alice.send(EventFileDelete, map[string]string{"roomId": "r1", "fileId": "f1"})
		assert.JSONEq(t, `"f1"`, string(bob.expect(EventFileDeleted).Data))
		assert.JSONEq(t, `"f1"`, string(alice.expect(EventFileDeleted).Data))
	})

	t.Run("TerminalOutputCarriesRoom", func(t *testing.T) {
		alice.send(EventTerminalOutput, map[string]any{"roomId": "r1", "output": "hi", "ranBy": "alice"})
		env := bob.expect(EventTerminalUpdate)
		assert.JSONEq(t, `{"roomId":"r1","output":"hi","ranBy":"alice"}`, string(env.Data))
		alice.expect(EventTerminalUpdate)
	})

	t.Run("VoiceSignalGoesToTarget", func(t *testing.T) {
		alice.send(EventVoiceOffer, map[string]any{"roomId": "r1", "to": bob.id, "offer": map[string]string{"sdp": "x"}})
		env := bob.expect(EventVoiceOffer)
		assert.JSONEq(t, `{"roomId":"r1","from":"`+alice.id+`","offer":{"sdp":"x"}}`, string(env.Data))
	})

	t.Run("MicStatus", func(t *testing.T) {
		bob.send(EventMicStatus, map[string]any{"roomId": "r1", "userId": "bob", "status": true})
		env := alice.expect(EventMicStatusUpdate)
		assert.JSONEq(t, `{"userId":"bob","status":true}`, string(env.Data))
		bob.expect(EventMicStatusUpdate)
	})

	t.Run("DisconnectUpdatesPresence", func(t *testing.T) {
		require.NoError(t, bob.conn.Close())
		members := decodeMembers(t, alice.expect(EventPresenceUpdate))
		assert.Equal(t, []string{"alice"}, memberIDs(members))
		assert.Equal(t, []string{"alice"}, memberIDs(store.Members("r1")))
	})

	t.Run("LeaveRoom", func(t *testing.T) {
		alice.send(EventLeaveRoom, map[string]string{"roomId": "r1", "userId": "alice"})
		alice.expectNothing()
		assert.Equal(t, 0, store.RoomCount())
	})
}

func TestHubRejectsBadInput(t *testing.T) {
	_, _, server := newTestHub(t)
	c := dial(t, server)

	c.send("launch-missiles", map[string]string{})
	env := c.expect(EventError)
	assert.Contains(t, string(env.Data), "unknown event: launch-missiles")

	require.NoError(t, c.conn.WriteJSON(map[string]any{"event": EventJoinRoom, "data": "not an object"}))
	env = c.expect(EventError)
	assert.Contains(t, string(env.Data), "malformed payload for join-room")
}

func TestHubOriginCheck(t *testing.T) {
	store := NewStore()
	hub := NewHub(zaptest.NewLogger(t), store, WithAllowedOrigins([]string{"http://allowed.example"}))
	server := httptest.NewServer(hub)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"http://allowed.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHubClose(t *testing.T) {
	hub, _, server := newTestHub(t)
	c := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
