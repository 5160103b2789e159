package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func join(t *testing.T, hub *Hub, sessionID uuid.UUID, buffer int) *Client {
	t.Helper()
	client := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, buffer)}
	want := hub.ConnectedClients(sessionID) + 1
	require.True(t, hub.Join(client))
	require.Eventually(t, func() bool { return hub.ConnectedClients(sessionID) == want }, time.Second, 5*time.Millisecond)
	return client
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		require.True(t, ok, "stream closed")
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return Event{}
	}
}

func TestHub_JoinAndLeave(t *testing.T) {
	hub := startHub(t)
	sessionID := uuid.New()

	client := join(t, hub, sessionID, 1)

	hub.Leave(client)
	require.Eventually(t, func() bool { return hub.ConnectedClients(sessionID) == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open)
	assert.Equal(t, 0, hub.Sessions())
}

func TestHub_Publish(t *testing.T) {
	hub := startHub(t)
	sessionID := uuid.New()
	client := join(t, hub, sessionID, 10)

	hub.Publish(sessionID, EventTickReport, map[string]int{"face_count": 1})
	hub.Publish(sessionID, EventTickReport, map[string]int{"face_count": 2})

	first := receive(t, client)
	assert.Equal(t, EventTickReport, first.Type)
	assert.Equal(t, sessionID, first.SessionID)
	assert.Equal(t, uint64(1), first.Seq)
	assert.False(t, first.Replay)
	assert.Equal(t, float64(1), first.Data.(map[string]interface{})["face_count"])

	second := receive(t, client)
	assert.Equal(t, uint64(2), second.Seq)
}

func TestHub_LateViewerGetsLatestReport(t *testing.T) {
	hub := startHub(t)
	sessionID := uuid.New()

	hub.Publish(sessionID, EventTickReport, map[string]string{"status": "Face Detected"})
	hub.Publish(sessionID, EventTickReport, map[string]string{"status": "No Face Detected"})
	require.Eventually(t, func() bool { return hub.Sessions() == 1 }, time.Second, 5*time.Millisecond)
	// both reports must be delivered before the viewer joins
	time.Sleep(20 * time.Millisecond)

	client := join(t, hub, sessionID, 10)

	replay := receive(t, client)
	assert.True(t, replay.Replay)
	assert.Equal(t, uint64(2), replay.Seq)
	assert.Equal(t, "No Face Detected", replay.Data.(map[string]interface{})["status"])
}

func TestHub_SessionClosedDisconnectsViewers(t *testing.T) {
	hub := startHub(t)
	sessionID := uuid.New()
	client := join(t, hub, sessionID, 10)

	hub.Publish(sessionID, EventTickReport, nil)
	hub.Publish(sessionID, EventSessionClosed, map[string]int{"ticks": 1})

	assert.Equal(t, EventTickReport, receive(t, client).Type)
	assert.Equal(t, EventSessionClosed, receive(t, client).Type)

	_, open := <-client.send
	assert.False(t, open)
	assert.Equal(t, 0, hub.Sessions())
}

func TestHub_SessionIsolation(t *testing.T) {
	hub := startHub(t)

	session1 := uuid.New()
	session2 := uuid.New()
	client1 := join(t, hub, session1, 10)
	client2 := join(t, hub, session2, 10)

	hub.Publish(session1, EventTickReport, nil)

	assert.Equal(t, session1, receive(t, client1).SessionID)

	select {
	case <-client2.send:
		t.Fatal("client2 should not receive message from session1")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	sessionID := uuid.New()

	slow := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte)}
	require.True(t, hub.Join(slow))
	require.Eventually(t, func() bool { return hub.ConnectedClients(sessionID) == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(sessionID, EventTickReport, nil)
	assert.Eventually(t, func() bool { return hub.ConnectedClients(sessionID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_JoinAfterStop(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	client := &Client{hub: hub, sessionID: uuid.New(), send: make(chan []byte, 1)}
	assert.False(t, hub.Join(client))
	hub.Leave(client)
}
