package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (c *captureSink) Consume(_ context.Context, batch []Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, batch...)
	return nil
}

func (c *captureSink) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func validEvent(stage Stage) Event {
	evt := Event{JobID: uuid.New(), TS: time.Now().UTC(), Stage: stage}
	if stage == StagePageFetched || stage == StagePageParsed {
		evt.Page = 1
	}
	return evt
}

func TestHubDeliversAndClosesSinks(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(HubConfig{MaxWait: 10 * time.Millisecond}, sink)

	hub.Emit(validEvent(StageJobStart))
	hub.Emit(validEvent(StagePageFetched))
	hub.Emit(validEvent(StageJobDone))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))

	got := sink.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, StageJobStart, got[0].Stage)
	assert.Equal(t, StageJobDone, got[2].Stage)
	assert.True(t, sink.closed)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(HubConfig{}, sink)

	hub.Emit(Event{Stage: StageJobStart}) // missing job id and timestamp
	hub.Emit(validEvent(StageJobStart))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))

	require.Len(t, sink.snapshot(), 1)
}

func TestHubCloseIdempotent(t *testing.T) {
	hub := NewHub(HubConfig{}, &captureSink{})
	ctx := context.Background()
	require.NoError(t, hub.Close(ctx))
	require.NoError(t, hub.Close(ctx))
}

func TestEventValidate(t *testing.T) {
	base := Event{JobID: uuid.New(), TS: time.Now()}

	t.Run("page events require page numbers", func(t *testing.T) {
		evt := base
		evt.Stage = StagePageParsed
		assert.Error(t, evt.Validate())
		evt.Page = 3
		assert.NoError(t, evt.Validate())
	})

	t.Run("unknown stage rejected", func(t *testing.T) {
		evt := base
		evt.Stage = Stage("BOGUS")
		assert.Error(t, evt.Validate())
	})

	t.Run("negative duration rejected", func(t *testing.T) {
		evt := base
		evt.Stage = StageJobDone
		evt.Dur = -time.Second
		assert.Error(t, evt.Validate())
	})
}
