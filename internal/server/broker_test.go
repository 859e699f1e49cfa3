package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerBroadcast(t *testing.T) {
	b := NewBroker(nil, testSlog())

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch2)

	b.broadcast([]byte("event: test\ndata: {}\n\n"))

	select {
	case got := <-ch1:
		assert.Equal(t, "event: test\ndata: {}\n\n", string(got))
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive the event")
	}
	select {
	case got := <-ch2:
		assert.Equal(t, "event: test\ndata: {}\n\n", string(got))
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive the event")
	}

	// After unsubscribing, the channel is closed and no longer receives.
	b.Unsubscribe(ch1)
	_, open := <-ch1
	assert.False(t, open, "unsubscribed channel should be closed")
}

func TestBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker(nil, testSlog())

	slow := b.Subscribe()
	defer b.Unsubscribe(slow)

	// Fill the slow subscriber's buffer past capacity. broadcast must not
	// block even though nobody is draining the channel.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.broadcast([]byte("event: x\ndata: {}\n\n"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}

	// The buffer holds the first 64 events; the rest were dropped.
	require.Len(t, slow, 64)
}
