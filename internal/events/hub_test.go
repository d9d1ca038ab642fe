package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishAssignsIDs(t *testing.T) {
	h := NewHub(10)
	a := h.Publish("a", map[string]int{"n": 1})
	b := h.Publish("b", nil)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.NotEmpty(t, a.UUID)
	assert.NotEqual(t, a.UUID, b.UUID)
	assert.JSONEq(t, `{"n":1}`, string(a.Data))
	assert.JSONEq(t, `{}`, string(b.Data))
}

func TestHub_BacklogKeepsNewest(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish("tick", i)
	}

	all := h.Backlog(0)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)
	assert.Equal(t, int64(5), all[2].ID)

	later := h.Backlog(4)
	require.Len(t, later, 1)
	assert.Equal(t, int64(5), later[0].ID)
}

func TestHub_Subscribe(t *testing.T) {
	h := NewHub(3)
	ch, cancel := h.Subscribe()

	h.Publish("x", "payload")
	select {
	case ev := <-ch:
		assert.Equal(t, "x", ev.Type)
		assert.Equal(t, json.RawMessage(`"payload"`), ev.Data)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}

func TestHub_SlowStreamDoesNotBlockPublish(t *testing.T) {
	h := NewHub(2)
	ch, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberQueue+10; i++ {
			h.Publish("tick", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full stream")
	}

	assert.Len(t, ch, subscriberQueue)
	assert.Len(t, h.Backlog(0), 2)
}

func TestEvent_MarshalKeepsDataAsJSON(t *testing.T) {
	ev := NewHub(1).Publish("x", map[string]string{"k": "v"})
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, map[string]any{"k": "v"}, decoded["data"])
}
