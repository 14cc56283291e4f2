package devserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teamchat/internal/api"
	"github.com/teamchat/internal/config"
	"github.com/teamchat/internal/model"
	"github.com/teamchat/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		PageSize:           50,
		MaxUploadSize:      1 << 20,
		UploadDir:          t.TempDir(),
		CORSAllowedOrigins: "*",
	}
	srv := New(cfg, NewMemoryRepository(), NewMemorySessions())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func loginAs(t *testing.T, ts *httptest.Server, name, email string) (*api.Client, session.Session) {
	t.Helper()
	c := api.NewClient(ts.URL, session.Session{}, 0)
	sess, err := c.Login(context.Background(), name, email)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return api.NewClient(ts.URL, sess, 0), sess
}

func TestLoginIsIdempotentByEmail(t *testing.T) {
	ts := newTestServer(t)
	_, first := loginAs(t, ts, "Ann", "ann@example.com")
	_, second := loginAs(t, ts, "Ann Again", "ANN@example.com")
	if first.UserID != second.UserID {
		t.Fatalf("same email produced two users: %s vs %s", first.UserID, second.UserID)
	}
	if first.Token == second.Token {
		t.Fatal("each login must issue a fresh token")
	}
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	c := api.NewClient(ts.URL, session.Session{}, 0)
	_, err := c.Users(context.Background())
	if api.KindOf(err) != api.KindAuthExpired {
		t.Fatalf("unauthenticated request: %v", err)
	}
}

func TestOpenIndividualIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ann, annSess := loginAs(t, ts, "Ann", "ann@example.com")
	bob, bobSess := loginAs(t, ts, "Bob", "bob@example.com")

	chat1, err := ann.OpenIndividual(context.Background(), bobSess.UserID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	chat2, err := ann.OpenIndividual(context.Background(), bobSess.UserID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if chat1.ID != chat2.ID {
		t.Fatalf("get-or-create returned different chats: %s vs %s", chat1.ID, chat2.ID)
	}

	// The same pair from the other side resolves to the same chat.
	chat3, err := bob.OpenIndividual(context.Background(), annSess.UserID)
	if err != nil {
		t.Fatalf("open from bob: %v", err)
	}
	if chat3.ID != chat1.ID {
		t.Fatalf("pair resolved to different chats: %s vs %s", chat3.ID, chat1.ID)
	}

	// Chat with yourself is rejected.
	if _, err := ann.OpenIndividual(context.Background(), annSess.UserID); api.KindOf(err) != api.KindValidation {
		t.Fatalf("self chat: %v", err)
	}
}

func TestMessagePaging(t *testing.T) {
	ts := newTestServer(t)
	ann, _ := loginAs(t, ts, "Ann", "ann@example.com")
	_, bobSess := loginAs(t, ts, "Bob", "bob@example.com")

	chat, err := ann.OpenIndividual(context.Background(), bobSess.UserID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 1; i <= 5; i++ {
		if _, err := ann.Send(context.Background(), chat.ID, api.SendRequest{Content: fmt.Sprintf("msg %d", i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	// Page 1 is the freshest window, ascending inside the page.
	msgs, p, err := ann.Messages(context.Background(), chat.ID, 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if p.TotalPages != 3 {
		t.Fatalf("totalPages = %d, want 3", p.TotalPages)
	}
	if len(msgs) != 2 || msgs[0].Content != "msg 4" || msgs[1].Content != "msg 5" {
		t.Fatalf("page 1 = %v", contents(msgs))
	}

	// Last page holds the oldest remainder.
	msgs, _, err = ann.Messages(context.Background(), chat.ID, 3, 2)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "msg 1" {
		t.Fatalf("page 3 = %v", contents(msgs))
	}

	// Beyond the history: empty page, same total.
	msgs, p, err = ann.Messages(context.Background(), chat.ID, 9, 2)
	if err != nil {
		t.Fatalf("page 9: %v", err)
	}
	if len(msgs) != 0 || p.TotalPages != 3 {
		t.Fatalf("page 9 = %v, totalPages = %d", contents(msgs), p.TotalPages)
	}
}

func contents(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestMessagesRequireMembership(t *testing.T) {
	ts := newTestServer(t)
	ann, _ := loginAs(t, ts, "Ann", "ann@example.com")
	_, bobSess := loginAs(t, ts, "Bob", "bob@example.com")
	kim, _ := loginAs(t, ts, "Kim", "kim@example.com")

	chat, err := ann.OpenIndividual(context.Background(), bobSess.UserID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, _, err := kim.Messages(context.Background(), chat.ID, 1, 10); api.KindOf(err) != api.KindValidation {
		t.Fatalf("non-member read: %v", err)
	}
	if _, err := kim.Send(context.Background(), chat.ID, api.SendRequest{Content: "hi"}); api.KindOf(err) != api.KindValidation {
		t.Fatalf("non-member send: %v", err)
	}
}

func TestEditAndDeleteAreSenderOnly(t *testing.T) {
	ts := newTestServer(t)
	ann, _ := loginAs(t, ts, "Ann", "ann@example.com")
	bob, bobSess := loginAs(t, ts, "Bob", "bob@example.com")

	chat, err := ann.OpenIndividual(context.Background(), bobSess.UserID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sent, err := ann.Send(context.Background(), chat.ID, api.SendRequest{Content: "original"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// Bob is a member but not the sender.
	if _, err := bob.Edit(context.Background(), sent.ID, "hacked"); api.KindOf(err) != api.KindValidation {
		t.Fatalf("foreign edit: %v", err)
	}
	if err := bob.Delete(context.Background(), sent.ID); api.KindOf(err) != api.KindValidation {
		t.Fatalf("foreign delete: %v", err)
	}

	edited, err := ann.Edit(context.Background(), sent.ID, "fixed")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Content != "fixed" || edited.EditedAt == nil {
		t.Fatalf("edited = %+v", edited)
	}

	if err := ann.Delete(context.Background(), sent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	msgs, _, err := ann.Messages(context.Background(), chat.ID, 1, 10)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].Deleted || msgs[0].Content != "" {
		t.Fatalf("tombstone = %+v", msgs)
	}
}

func TestUploadAndServeFile(t *testing.T) {
	ts := newTestServer(t)
	ann, _ := loginAs(t, ts, "Ann", "ann@example.com")

	res, err := ann.Upload(context.Background(), "photo.png", strings.NewReader("not really a png"), 16)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ContentType != "image" {
		t.Fatalf("contentType = %s, want image", res.ContentType)
	}
	if res.FileName != "photo.png" || !strings.HasPrefix(res.FileURL, "/files/") {
		t.Fatalf("result = %+v", res)
	}

	resp, err := ts.Client().Get(ts.URL + res.FileURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("serve file status = %d", resp.StatusCode)
	}
}

func TestGroupLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ann, annSess := loginAs(t, ts, "Ann", "ann@example.com")
	_, bobSess := loginAs(t, ts, "Bob", "bob@example.com")
	_, kimSess := loginAs(t, ts, "Kim", "kim@example.com")

	group, err := ann.CreateGroup(context.Background(), "team", []string{bobSess.UserID})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if !group.HasMember(annSess.UserID) || !group.HasMember(bobSess.UserID) {
		t.Fatalf("creator or member missing: %+v", group.Members)
	}

	updated, err := ann.UpdateGroupMembers(context.Background(), group.ID, []string{annSess.UserID, bobSess.UserID, kimSess.UserID})
	if err != nil {
		t.Fatalf("update members: %v", err)
	}
	if len(updated.Members) != 3 {
		t.Fatalf("members = %d, want 3", len(updated.Members))
	}

	groups, err := ann.Groups(context.Background())
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != group.ID {
		t.Fatalf("groups = %+v", groups)
	}

	// A group needs someone besides the creator.
	if _, err := ann.CreateGroup(context.Background(), "solo", []string{annSess.UserID}); api.KindOf(err) != api.KindValidation {
		t.Fatalf("solo group: %v", err)
	}
}
