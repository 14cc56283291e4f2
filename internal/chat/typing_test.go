package chat

import (
	"sync"
	"testing"
	"time"
)

func TestTypingStateLastWriteWins(t *testing.T) {
	s := NewTypingState()

	s.Set("c1", "u2", true)
	s.Set("c1", "u3", true)

	slot, ok := s.Typist("c1")
	if !ok || slot.UserID != "u3" {
		t.Fatalf("slot = %+v, want u3 active", slot)
	}

	// Stop signal from a user who no longer owns the slot is ignored.
	s.Set("c1", "u2", false)
	if _, ok := s.Typist("c1"); !ok {
		t.Fatal("stale stop signal cleared another user's slot")
	}

	s.Set("c1", "u3", false)
	if _, ok := s.Typist("c1"); ok {
		t.Fatal("slot should be cleared by its owner")
	}
}

func TestTypingStateClear(t *testing.T) {
	s := NewTypingState()
	s.Set("c1", "u2", true)
	s.Set("c2", "u3", true)
	s.Clear()
	if _, ok := s.Typist("c1"); ok {
		t.Fatal("Clear must drop all slots")
	}
	if _, ok := s.Typist("c2"); ok {
		t.Fatal("Clear must drop all slots")
	}
}

type typingRecorder struct {
	mu    sync.Mutex
	calls []TypingSlot
}

func (r *typingRecorder) emit(chatID string, isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, TypingSlot{UserID: chatID, IsTyping: isTyping})
}

func (r *typingRecorder) snapshot() []TypingSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TypingSlot, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestTypingEmitterCoalescesBurst(t *testing.T) {
	rec := &typingRecorder{}
	e := NewTypingEmitter(50*time.Millisecond, time.Second, rec.emit)
	defer e.Cancel()

	for i := 0; i < 10; i++ {
		e.Keystroke("c1")
	}

	calls := rec.snapshot()
	if len(calls) != 1 || !calls[0].IsTyping {
		t.Fatalf("burst should emit exactly one isTyping=true, got %+v", calls)
	}
}

func TestTypingEmitterReEmitsAfterInterval(t *testing.T) {
	rec := &typingRecorder{}
	e := NewTypingEmitter(30*time.Millisecond, time.Second, rec.emit)
	defer e.Cancel()

	e.Keystroke("c1")
	time.Sleep(50 * time.Millisecond)
	e.Keystroke("c1")

	calls := rec.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected a second emit after the interval elapsed, got %+v", calls)
	}
}

func TestTypingEmitterIdleStop(t *testing.T) {
	rec := &typingRecorder{}
	e := NewTypingEmitter(10*time.Millisecond, 60*time.Millisecond, rec.emit)
	defer e.Cancel()

	e.Keystroke("c1")

	deadline := time.Now().Add(time.Second)
	for {
		calls := rec.snapshot()
		if len(calls) >= 2 {
			last := calls[len(calls)-1]
			if last.IsTyping {
				t.Fatalf("idle expiry must emit isTyping=false, got %+v", calls)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no idle stop emitted, calls: %+v", calls)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTypingEmitterCancelSuppressesIdleStop(t *testing.T) {
	rec := &typingRecorder{}
	e := NewTypingEmitter(10*time.Millisecond, 40*time.Millisecond, rec.emit)

	e.Keystroke("c1")
	e.Cancel()
	time.Sleep(80 * time.Millisecond)

	calls := rec.snapshot()
	for _, c := range calls {
		if !c.IsTyping {
			t.Fatalf("Cancel must stop the idle timer without emitting false: %+v", calls)
		}
	}
}
