package chat

import (
	"testing"
	"time"

	"github.com/teamchat/internal/model"
)

func profile(id, name string) model.Profile {
	return model.Profile{ID: id, Name: name, Email: name + "@example.com"}
}

func TestDirectoryExcludesSelf(t *testing.T) {
	d := NewDirectory("u1")
	d.SetUsers([]model.Profile{
		profile("u1", "me"),
		profile("u2", "ann"),
		profile("u3", "bob"),
	})

	entries := d.Individuals(nil)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Counterpart.ID == "u1" {
			t.Fatal("self profile must not appear in the directory")
		}
	}
}

func TestDirectorySkipsInvalidProfiles(t *testing.T) {
	d := NewDirectory("u1")
	d.SetUsers([]model.Profile{
		{ID: "", Name: "ghost"},
		{ID: "u2", Name: ""},
		profile("u3", "bob"),
	})

	entries := d.Individuals(nil)
	if len(entries) != 1 || entries[0].Counterpart.ID != "u3" {
		t.Fatalf("only the valid profile should remain, got %+v", entries)
	}
}

func TestDirectorySortsByActivity(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDirectory("u1")
	d.SetUsers([]model.Profile{
		profile("u2", "ann"),
		profile("u3", "bob"),
		profile("u4", "kim"),
	})
	d.SetChatID("u2", "c2")
	d.SetChatID("u3", "c3")
	d.SetTimestamps(map[string]time.Time{
		"c2": base.Add(time.Hour),
		"c3": base.Add(2 * time.Hour),
	})

	got := d.Individuals(nil)
	// bob has the freshest chat, kim has no resolved chat so falls last.
	want := []string{"u3", "u2", "u4"}
	for i, id := range want {
		if got[i].Counterpart.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].Counterpart.ID, id)
		}
	}
}

func TestDirectoryTouchIsMonotonic(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDirectory("u1")
	d.Touch("c1", base.Add(time.Hour))
	d.Touch("c1", base) // older, must not win
	if got := d.activityOf("c1"); !got.Equal(base.Add(time.Hour)) {
		t.Fatalf("older touch overwrote newer activity: %v", got)
	}
}

func TestDirectoryChatIDResolution(t *testing.T) {
	d := NewDirectory("u1")
	if _, ok := d.ChatID("u2"); ok {
		t.Fatal("unresolved counterpart should have no chat id")
	}
	d.SetChatID("u2", "c2")
	id, ok := d.ChatID("u2")
	if !ok || id != "c2" {
		t.Fatalf("got (%q, %v), want (c2, true)", id, ok)
	}
}

func TestDirectoryNoteInboundChat(t *testing.T) {
	d := NewDirectory("u1")
	d.SetUsers([]model.Profile{{ID: "u2", Name: "Ann", Email: "ann@x.dev"}})
	d.SetGroups([]model.Conversation{{ID: "g1", Kind: model.KindGroup, Members: []model.Profile{{ID: "u1"}, {ID: "u2"}}}})

	// Групповой chatId и неизвестный отправитель не создают привязки.
	d.NoteInboundChat("u2", "g1")
	d.NoteInboundChat("stranger", "c9")
	if _, ok := d.ChatID("u2"); ok {
		t.Fatal("group chat id must not bind as individual")
	}

	d.NoteInboundChat("u2", "c2")
	if id, ok := d.ChatID("u2"); !ok || id != "c2" {
		t.Fatalf("got (%q, %v), want (c2, true)", id, ok)
	}

	// Уже разрешённая переписка не перепривязывается.
	d.NoteInboundChat("u2", "c-other")
	if id, _ := d.ChatID("u2"); id != "c2" {
		t.Fatalf("resolved chat id rebound to %q", id)
	}
}

func TestDirectoryGroups(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDirectory("u1")
	d.SetGroups([]model.Conversation{
		{ID: "g1", Kind: model.KindGroup, Name: "team", Members: []model.Profile{profile("u1", "me"), profile("u2", "ann")}, CreatedAt: base},
		{ID: "g2", Kind: model.KindGroup, Members: nil, CreatedAt: base}, // no members, dropped
	})

	groups := d.Groups(nil)
	if len(groups) != 1 || groups[0].ChatID != "g1" {
		t.Fatalf("got %+v, want only g1", groups)
	}
	if groups[0].DisplayName != "team" {
		t.Fatalf("display name %q, want team", groups[0].DisplayName)
	}

	// A later group event replaces the stored copy.
	d.UpsertGroup(model.Conversation{
		ID: "g1", Kind: model.KindGroup, Name: "team-renamed",
		Members: []model.Profile{profile("u1", "me"), profile("u2", "ann")}, CreatedAt: base,
	})
	g, ok := d.Group("g1")
	if !ok || g.Name != "team-renamed" {
		t.Fatalf("upsert did not replace group: %+v", g)
	}
}

func TestGroupDisplayNameFallback(t *testing.T) {
	g := model.Conversation{
		ID: "g1", Kind: model.KindGroup,
		Members: []model.Profile{profile("u1", "me"), profile("u2", "ann")},
	}
	if got := g.DisplayName("u1"); got != model.GroupNamePlaceholder {
		t.Fatalf("unnamed group should use placeholder, got %q", got)
	}
}
