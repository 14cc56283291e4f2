package chat

import "testing"

func TestUnreadCounter(t *testing.T) {
	u := NewUnreadCounter()

	if u.Count("c1") != 0 {
		t.Fatal("fresh counter must be zero")
	}

	u.Increment("c1")
	u.Increment("c1")
	u.Increment("c2")

	if got := u.Count("c1"); got != 2 {
		t.Fatalf("c1 count = %d, want 2", got)
	}
	if got := u.Total(); got != 3 {
		t.Fatalf("total = %d, want 3", got)
	}

	u.Reset("c1")
	if u.Count("c1") != 0 {
		t.Fatal("reset must zero the chat counter")
	}
	if got := u.Total(); got != 1 {
		t.Fatalf("total after reset = %d, want 1", got)
	}

	// Reset of an untracked chat is harmless.
	u.Reset("c9")
}
