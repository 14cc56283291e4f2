package chat

import (
	"testing"
	"time"

	"github.com/teamchat/internal/model"
)

func msg(id, chatID string, at time.Time) model.Message {
	return model.Message{ID: id, ChatID: chatID, SenderID: "u1", Content: "m-" + id, CreatedAt: at}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func assertOrder(t *testing.T, got []model.Message, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages %v, want %d %v", len(got), ids(got), len(want), want)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (full order %v)", i, got[i].ID, id, ids(got))
		}
	}
}

func TestStoreDedupeAcrossSources(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("c1")

	// Realtime push arrives before the history response.
	if !s.ApplyInbound(msg("m2", "c1", base.Add(2*time.Second))) {
		t.Fatal("first inbound should append")
	}
	if s.ApplyInbound(msg("m2", "c1", base.Add(2*time.Second))) {
		t.Fatal("duplicate inbound should be a no-op")
	}

	// History page 1 includes the same message again.
	s.SetBaseline([]model.Message{
		msg("m1", "c1", base.Add(time.Second)),
		msg("m2", "c1", base.Add(2*time.Second)),
	}, model.Pagination{TotalPages: 1, CurrentPage: 1})

	assertOrder(t, s.Messages(), "m1", "m2")
}

func TestStoreDropsForeignChatMessages(t *testing.T) {
	s := NewStore("c1")
	if s.ApplyInbound(msg("x", "other", time.Now())) {
		t.Fatal("message for another chat must not be applied")
	}
	s.SetBaseline([]model.Message{msg("y", "other", time.Now())}, model.Pagination{TotalPages: 1})
	if s.Len() != 0 {
		t.Fatalf("foreign messages leaked into the store: %v", ids(s.Messages()))
	}
}

func TestStoreOrderingByCreatedAt(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("c1")

	// Delivered out of chronological order.
	s.SetBaseline([]model.Message{
		msg("m3", "c1", base.Add(3*time.Second)),
		msg("m1", "c1", base.Add(time.Second)),
		msg("m2", "c1", base.Add(2*time.Second)),
	}, model.Pagination{TotalPages: 1})

	assertOrder(t, s.Messages(), "m1", "m2", "m3")
}

func TestStoreEqualTimestampsKeepArrivalOrder(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("c1")
	s.SetBaseline([]model.Message{
		msg("a", "c1", at),
		msg("b", "c1", at),
		msg("c", "c1", at),
	}, model.Pagination{TotalPages: 1})

	assertOrder(t, s.Messages(), "a", "b", "c")
}

func TestStorePrependOlderPage(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("c1")

	s.SetBaseline([]model.Message{
		msg("m1", "c1", base.Add(time.Second)),
		msg("m2", "c1", base.Add(2*time.Second)),
	}, model.Pagination{TotalPages: 2, CurrentPage: 1})

	if !s.CanLoadOlder() {
		t.Fatal("expected more history after page 1 of 2")
	}

	s.PrependOlder([]model.Message{
		msg("m0", "c1", base),
	}, 2, model.Pagination{TotalPages: 2, CurrentPage: 2})

	assertOrder(t, s.Messages(), "m0", "m1", "m2")
	if s.CanLoadOlder() {
		t.Fatal("all pages loaded, CanLoadOlder must be false")
	}
}

func TestStoreSoftDeleteKeepsPosition(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("c1")
	s.SetBaseline([]model.Message{
		msg("m1", "c1", base.Add(time.Second)),
		msg("m2", "c1", base.Add(2*time.Second)),
		msg("m3", "c1", base.Add(3*time.Second)),
	}, model.Pagination{TotalPages: 1})

	if !s.ApplySoftDelete("m2") {
		t.Fatal("delete of a known message should report a change")
	}
	assertOrder(t, s.Messages(), "m1", "m2", "m3")

	got, ok := s.Get("m2")
	if !ok {
		t.Fatal("tombstone must stay addressable by id")
	}
	if !got.Deleted || got.Content != "" || got.FileURL != "" {
		t.Fatalf("tombstone not scrubbed: %+v", got)
	}

	if s.ApplySoftDelete("missing") {
		t.Fatal("delete of an unknown id must be a no-op")
	}
}

func TestStoreEditPreservesCreatedAt(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("c1")
	s.SetBaseline([]model.Message{msg("m1", "c1", at)}, model.Pagination{TotalPages: 1})

	edited := msg("m1", "c1", at.Add(time.Hour))
	edited.Content = "edited"
	now := at.Add(time.Minute)
	edited.EditedAt = &now

	if !s.ApplyEdit(edited) {
		t.Fatal("edit of a known message should apply")
	}
	got, _ := s.Get("m1")
	if got.Content != "edited" {
		t.Fatalf("content not replaced: %q", got.Content)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("createdAt changed on edit: %v", got.CreatedAt)
	}
}

func TestStoreReconcilePending(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("response first", func(t *testing.T) {
		s := NewStore("c1")
		s.AppendPending(msg("pending:1", "c1", base))
		s.Reconcile("pending:1", msg("srv1", "c1", base.Add(time.Millisecond)))
		assertOrder(t, s.Messages(), "srv1")

		// Realtime echo of the same message after reconciliation.
		if s.ApplyInbound(msg("srv1", "c1", base.Add(time.Millisecond))) {
			t.Fatal("echo after reconcile must deduplicate")
		}
		assertOrder(t, s.Messages(), "srv1")
	})

	t.Run("echo first", func(t *testing.T) {
		s := NewStore("c1")
		s.AppendPending(msg("pending:1", "c1", base))
		if !s.ApplyInbound(msg("srv1", "c1", base.Add(time.Millisecond))) {
			t.Fatal("echo should append")
		}
		s.Reconcile("pending:1", msg("srv1", "c1", base.Add(time.Millisecond)))
		assertOrder(t, s.Messages(), "srv1")
	})

	t.Run("failed send", func(t *testing.T) {
		s := NewStore("c1")
		s.SetBaseline([]model.Message{msg("m1", "c1", base)}, model.Pagination{TotalPages: 1})
		s.AppendPending(msg("pending:1", "c1", base.Add(time.Second)))
		s.DropPending("pending:1")
		assertOrder(t, s.Messages(), "m1")
	})
}
