package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case payload, ok := <-sub.Send:
		require.True(t, ok, "subscriber channel closed")
		var evt Event
		require.NoError(t, json.Unmarshal(payload, &evt))
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubBroadcastsToAllSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := &Subscriber{Send: make(chan []byte, 8)}
	b := &Subscriber{Send: make(chan []byte, 8)}
	hub.Register(a)
	hub.Register(b)

	hub.Publish(Event{Type: EventEditOpened, EditID: 1, EditorID: 42})

	for _, sub := range []*Subscriber{a, b} {
		evt := recvEvent(t, sub)
		assert.Equal(t, EventEditOpened, evt.Type)
		assert.Equal(t, int64(1), evt.EditID)
		assert.NotZero(t, evt.Timestamp)
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	sub := &Subscriber{Send: make(chan []byte, 8)}
	hub.Register(sub)
	hub.Unregister(sub)

	select {
	case _, ok := <-sub.Send:
		assert.False(t, ok, "channel should be closed after unregister")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestHubStopClosesSubscribers(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	sub := &Subscriber{Send: make(chan []byte, 8)}
	hub.Register(sub)
	hub.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// Publish after stop must not block
	hub.Publish(Event{Type: EventEditNote, EditID: 2})
}
