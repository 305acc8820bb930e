package notificationhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishDrain(t *testing.T) {
	hub := New(4)
	sub := hub.Subscribe("alice")
	defer sub.Close()

	hub.Publish("alice", Event{Type: EventKindMessage, Data: "hi"})

	events := sub.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, EventKindMessage, events[0].Type)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublishToUnknownParticipantIsNoOp(t *testing.T) {
	hub := New(4)
	assert.NotPanics(t, func() {
		hub.Publish("ghost", Event{Type: EventKindMessage})
	})
}

func TestBroadcastReachesEveryConnectedClient(t *testing.T) {
	hub := New(4)
	a := hub.Subscribe("alice")
	b := hub.Subscribe("bob")
	defer a.Close()
	defer b.Close()

	hub.Broadcast(Event{Type: EventKindDialogueUpdate})

	assert.Len(t, a.Drain(), 1)
	assert.Len(t, b.Drain(), 1)
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	hub := New(2)
	sub := hub.Subscribe("alice")
	defer sub.Close()

	hub.Publish("alice", Event{Type: EventKindMessage, Data: "1"})
	hub.Publish("alice", Event{Type: EventKindMessage, Data: "2"})
	hub.Publish("alice", Event{Type: EventKindMessage, Data: "3"})

	events := sub.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].Data)
	assert.Equal(t, "3", events[1].Data)
}

func TestClientDisconnectsAfterSustainedOverflow(t *testing.T) {
	hub := New(1)
	hub.disconnectStreak = 3
	sub := hub.Subscribe("alice")
	defer sub.Close()

	for i := 0; i < 10; i++ {
		hub.Publish("alice", Event{Type: EventKindMessage})
	}

	assert.False(t, hub.IsConnected("alice"), "a client overflowing past the disconnect streak must be unregistered")
}

func TestCloseUnregistersClient(t *testing.T) {
	hub := New(4)
	sub := hub.Subscribe("alice")
	require.True(t, hub.IsConnected("alice"))
	sub.Close()
	assert.False(t, hub.IsConnected("alice"))
}

func TestWaitUnblocksOnStop(t *testing.T) {
	hub := New(4)
	sub := hub.Subscribe("alice")
	defer sub.Close()

	stop := make(chan struct{})
	close(stop)
	ok := sub.Wait(stop)
	assert.False(t, ok)
}
