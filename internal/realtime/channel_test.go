package realtime

import (
	"context"
	"testing"
	"time"
)

func TestChannelReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	failed := make(chan struct{})
	c := NewChannel("ws://127.0.0.1:1", "tok", 3, time.Millisecond, NewRouter(panickingHandler{}),
		func() { close(failed) })
	defer c.Close()

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("onReconnectFailed was not invoked")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after giving up")
	}
}

func TestChannelCloseStopsRun(t *testing.T) {
	c := NewChannel("ws://127.0.0.1:1", "tok", 1000, time.Hour, NewRouter(panickingHandler{}), nil)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	// Give Run a moment to enter the backoff wait.
	time.Sleep(20 * time.Millisecond)
	c.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after Close")
	}

	// Close is idempotent.
	c.Close()
}
