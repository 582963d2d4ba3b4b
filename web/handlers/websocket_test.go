package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/troupe/pkg/types"
)

func TestSessionHub_DeliversOnlyToOwnSession(t *testing.T) {
	hub := NewSessionHub(7373)

	watcherA := &MockClient{SendChan: make(chan []byte, 4)}
	watcherB := &MockClient{SendChan: make(chan []byte, 4)}
	hub.Register("session-a", watcherA)
	hub.Register("session-b", watcherB)

	hub.Deliver(&types.ChatTurn{
		ID:        "turn-1",
		SessionID: "session-a",
		Responses: []types.CharacterResponse{{CharacterName: "Zoe", Content: "hi"}},
	})

	select {
	case data := <-watcherA.SendChan:
		var event TurnEvent
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, "turn", event.Type)
		assert.Equal(t, "turn-1", event.Turn.ID)
	default:
		t.Fatal("session-a watcher received nothing")
	}

	select {
	case <-watcherB.SendChan:
		t.Fatal("turn leaked into a different session")
	default:
	}
}

func TestSessionHub_DropsSlowClient(t *testing.T) {
	hub := NewSessionHub(7373)

	slow := &MockClient{SendChan: make(chan []byte)} // unbuffered, never read
	hub.Register("session-a", slow)

	hub.Deliver(&types.ChatTurn{ID: "turn-1", SessionID: "session-a"})

	// The client was dropped and its channel closed.
	_, open := <-slow.SendChan
	assert.False(t, open)
}

func TestSessionHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewSessionHub(7373)

	client := &MockClient{SendChan: make(chan []byte, 1)}
	hub.Register("session-a", client)
	hub.Unregister("session-a", client)

	_, open := <-client.SendChan
	assert.False(t, open)

	// Double unregister is harmless.
	hub.Unregister("session-a", client)
}

func TestSessionHub_StopDisconnectsEveryone(t *testing.T) {
	hub := NewSessionHub(7373)

	a := &MockClient{SendChan: make(chan []byte, 1)}
	b := &MockClient{SendChan: make(chan []byte, 1)}
	hub.Register("session-a", a)
	hub.Register("session-b", b)

	hub.Stop()

	_, open := <-a.SendChan
	assert.False(t, open)
	_, open = <-b.SendChan
	assert.False(t, open)

	// Registrations after Stop are refused.
	late := &MockClient{SendChan: make(chan []byte, 1)}
	hub.Register("session-a", late)
	_, open = <-late.SendChan
	assert.False(t, open)
}
