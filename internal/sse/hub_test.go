package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func newClient(id, userID string) *Client {
	return &Client{ID: id, UserID: userID, Send: make(chan []byte, 16)}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := startHub(t)
	client := newClient("client-1", "u1")

	hub.Register(client)
	assert.Eventually(t, func() bool { return hub.Connected("u1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.Connected("u1") == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-client.Send
	assert.False(t, ok)
}

func TestHub_PublishReachesOnlyThatUser(t *testing.T) {
	hub := startHub(t)
	mine := newClient("client-1", "u1")
	other := newClient("client-2", "u2")
	hub.Register(mine)
	hub.Register(other)

	require.True(t, hub.Publish("u1", ViewEvent, map[string]string{"phase": "ready"}))

	select {
	case msg := <-mine.Send:
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, ViewEvent, event.Type)
		assert.Equal(t, map[string]any{"phase": "ready"}, event.Data)
	case <-time.After(time.Second):
		t.Fatal("did not receive message")
	}

	select {
	case <-other.Send:
		t.Fatal("other user received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishFansOutToEveryStream(t *testing.T) {
	hub := startHub(t)
	first := newClient("client-1", "u1")
	second := newClient("client-2", "u1")
	hub.Register(first)
	hub.Register(second)

	hub.Publish("u1", ViewEvent, "x")

	for _, c := range []*Client{first, second} {
		select {
		case <-c.Send:
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive message", c.ID)
		}
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub()

	for i := 0; i < cap(hub.broadcast); i++ {
		require.True(t, hub.Publish("u1", ViewEvent, i))
	}
	assert.False(t, hub.Publish("u1", ViewEvent, "dropped"))
}

func TestHub_StopClosesStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := newClient("client-1", "u1")
	hub.Register(client)
	cancel()
	<-done

	_, ok := <-client.Send
	assert.False(t, ok)
}
