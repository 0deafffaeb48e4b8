package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rendis/flowrun/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect reads events until the channel stays quiet for a short while.
func collect(ch <-chan StreamEvent) []StreamEvent {
	var got []StreamEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-time.After(50 * time.Millisecond):
			return got
		}
	}
}

func eventTypes(evs []StreamEvent) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.EventType
	}
	return out
}

func TestEventFilter_Accepts(t *testing.T) {
	ev := StreamEvent{TaskID: "t1", EventType: schema.EventNodeSucceeded}
	tests := []struct {
		name   string
		filter EventFilter
		want   bool
	}{
		{"zero filter", EventFilter{}, true},
		{"same task", EventFilter{TaskID: "t1"}, true},
		{"other task", EventFilter{TaskID: "t2"}, false},
		{"listed type", EventFilter{EventTypes: []string{schema.EventNodeFailed, schema.EventNodeSucceeded}}, true},
		{"unlisted type", EventFilter{EventTypes: []string{schema.EventNodeSkipped}}, false},
		{"task ok type not", EventFilter{TaskID: "t1", EventTypes: []string{schema.EventWorkflowFailed}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Accepts(ev))
		})
	}
}

func TestMemoryHub_Routing(t *testing.T) {
	hub := NewMemoryHub()
	ctx := t.Context()

	all, cancelAll, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancelAll()
	task1, cancel1, err := hub.Subscribe(ctx, EventFilter{TaskID: "t1"})
	require.NoError(t, err)
	defer cancel1()
	terminal, cancelTerm, err := hub.Subscribe(ctx, EventFilter{
		EventTypes: []string{schema.EventWorkflowSucceeded, schema.EventWorkflowFailed},
	})
	require.NoError(t, err)
	defer cancelTerm()
	assert.Equal(t, 3, hub.Subscribers())

	for _, ev := range []StreamEvent{
		{TaskID: "t1", NodeID: "start", EventType: schema.EventNodeSucceeded, Payload: map[string]any{"x": 1}},
		{TaskID: "t2", EventType: schema.EventWorkflowFailed},
		{TaskID: "t1", EventType: schema.EventWorkflowSucceeded},
	} {
		require.NoError(t, hub.Publish(ctx, ev))
	}

	gotAll := collect(all)
	assert.Len(t, gotAll, 3)
	assert.Equal(t, "start", gotAll[0].NodeID)
	assert.Equal(t, map[string]any{"x": 1}, gotAll[0].Payload)

	assert.Equal(t, []string{schema.EventNodeSucceeded, schema.EventWorkflowSucceeded}, eventTypes(collect(task1)))
	assert.Equal(t, []string{schema.EventWorkflowFailed, schema.EventWorkflowSucceeded}, eventTypes(collect(terminal)))
}

func TestMemoryHub_Unsubscribe(t *testing.T) {
	t.Run("cancel func", func(t *testing.T) {
		hub := NewMemoryHub()
		ch, cancel, err := hub.Subscribe(t.Context(), EventFilter{})
		require.NoError(t, err)

		cancel()
		cancel()
		require.NoError(t, hub.Publish(t.Context(), StreamEvent{TaskID: "t1", EventType: schema.EventNodeProcessing}))

		_, ok := <-ch
		assert.False(t, ok)
		assert.Zero(t, hub.Subscribers())
	})

	t.Run("context end", func(t *testing.T) {
		hub := NewMemoryHub()
		ctx, cancel := context.WithCancel(t.Context())
		ch, _, err := hub.Subscribe(ctx, EventFilter{})
		require.NoError(t, err)

		cancel()
		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("subscription still open after context end")
		}
		assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	})
}

func TestMemoryHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewMemoryHub()
	ch, cancel, err := hub.Subscribe(t.Context(), EventFilter{})
	require.NoError(t, err)
	defer cancel()

	for i := range defaultChannelBuffer * 2 {
		require.NoError(t, hub.Publish(t.Context(), StreamEvent{TaskID: "t1", EventType: schema.EventLoopIterCompleted, Payload: i}))
	}

	got := collect(ch)
	require.Len(t, got, defaultChannelBuffer)
	assert.Equal(t, 0, got[0].Payload, "oldest events are kept")
}

func TestMemoryHub_EndedContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, hub.Publish(ctx, StreamEvent{TaskID: "t1"}), context.Canceled)
	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryHub_ConcurrentChurn(t *testing.T) {
	hub := NewMemoryHub()
	ctx := t.Context()
	var wg sync.WaitGroup

	for range 10 {
		wg.Go(func() {
			for range 50 {
				_ = hub.Publish(ctx, StreamEvent{TaskID: "busy", EventType: schema.EventNodeProcessing})
			}
		})
		wg.Go(func() {
			ch, cancel, err := hub.Subscribe(ctx, EventFilter{TaskID: "busy"})
			if err != nil {
				return
			}
			for range 3 {
				select {
				case <-ch:
				case <-time.After(10 * time.Millisecond):
				}
			}
			cancel()
		})
	}
	wg.Wait()
	assert.Zero(t, hub.Subscribers())
}
