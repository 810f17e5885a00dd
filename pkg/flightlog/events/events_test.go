package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Subscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe(RetrievalProgress)
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestBroadcaster_PublishFiltersByKind(t *testing.T) {
	b := New()
	defer b.Close()

	progress := b.Subscribe(RetrievalProgress)
	all := b.Subscribe()

	b.Publish(Event{Kind: ExportFinished, Payload: "done"})

	select {
	case ev := <-all.Events:
		assert.Equal(t, ExportFinished, ev.Kind)
		assert.Equal(t, "done", ev.Payload)
		assert.False(t, ev.Time.IsZero())
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event not received")
	}

	select {
	case <-progress.Events:
		t.Fatal("should not receive an unrequested kind")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_DropsProgressWhenFull(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	for i := 0; i < DefaultBuffer+10; i++ {
		b.Publish(Event{Kind: RetrievalProgress, Payload: i})
	}
	assert.Len(t, sub.Events, DefaultBuffer)
}

func TestBroadcaster_TerminalWaitsForRoom(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	for i := 0; i < DefaultBuffer; i++ {
		b.Publish(Event{Kind: RetrievalProgress})
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-sub.Events
	}()
	b.Publish(Event{Kind: RetrievalFinished})

	var last Event
	for len(sub.Events) > 0 {
		last = <-sub.Events
	}
	assert.Equal(t, RetrievalFinished, last.Kind)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub.ID)

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Zero(t, b.SubscriberCount())
}

func TestBroadcaster_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Nil(t, b.Subscribe())

	// Publishing after close is a no-op.
	b.Publish(Event{Kind: StateChanged})
	b.Close()
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "export-finished", ExportFinished.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
