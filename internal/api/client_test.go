package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teamchat/internal/session"
)

func testSession() session.Session {
	return session.Session{UserID: "u1", Name: "Me", Email: "me@example.com", Token: "tok"}
}

func TestClientErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuthExpired},
		{"bad request", http.StatusBadRequest, KindValidation},
		{"forbidden", http.StatusForbidden, KindValidation},
		{"not found", http.StatusNotFound, KindValidation},
		{"server error", http.StatusInternalServerError, KindNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))
			defer srv.Close()

			c := NewClient(srv.URL, testSession(), 0)
			_, err := c.Users(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tc.kind {
				t.Fatalf("kind = %v, want %v", got, tc.kind)
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) || apiErr.Status != tc.status {
				t.Fatalf("status not carried: %v", err)
			}
		})
	}
}

func TestClientNetworkErrorKind(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", testSession(), 0)
	_, err := c.Users(context.Background())
	if err == nil {
		t.Fatal("expected connection failure")
	}
	if KindOf(err) != KindNetwork {
		t.Fatalf("kind = %v, want network", KindOf(err))
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"users": []any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testSession(), 0)
	if _, err := c.Users(context.Background()); err != nil {
		t.Fatalf("users: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
}

func TestClientMessagesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/c1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "3" || r.URL.Query().Get("limit") != "25" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"messages":[{"_id":"m1","chatId":"c1","senderId":"u2","content":"hi","createdAt":"2026-05-01T12:00:00Z"}],"pagination":{"totalPages":4,"currentPage":3}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testSession(), 0)
	msgs, p, err := c.Messages(context.Background(), "c1", 3, 25)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("messages = %+v", msgs)
	}
	if p.TotalPages != 4 || p.CurrentPage != 3 {
		t.Fatalf("pagination = %+v", p)
	}
}

func TestClientLocalValidation(t *testing.T) {
	c := NewClient("http://unused", testSession(), 0)

	if _, err := c.Send(context.Background(), "c1", SendRequest{}); KindOf(err) != KindValidation {
		t.Fatalf("empty send: %v", err)
	}
	if _, err := c.Edit(context.Background(), "m1", ""); KindOf(err) != KindValidation {
		t.Fatalf("empty edit: %v", err)
	}
	if _, err := c.OpenIndividual(context.Background(), ""); KindOf(err) != KindValidation {
		t.Fatalf("empty recipient: %v", err)
	}
	if _, err := c.CreateGroup(context.Background(), "g", nil); KindOf(err) != KindValidation {
		t.Fatalf("empty group: %v", err)
	}
	if _, err := c.Login(context.Background(), "", ""); KindOf(err) != KindValidation {
		t.Fatalf("empty login: %v", err)
	}
}

func TestClientUploadSizeCheckedBeforeSend(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testSession(), 10)
	_, err := c.Upload(context.Background(), "big.bin", strings.NewReader("way more than ten bytes"), 23)
	if KindOf(err) != KindUploadTooLarge {
		t.Fatalf("kind = %v, want upload_too_large", KindOf(err))
	}
	if requests != 0 {
		t.Fatal("oversized upload must not reach the network")
	}
}

func TestClientUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		f.Close()
		json.NewEncoder(w).Encode(UploadResult{
			FileURL: "/files/" + hdr.Filename, ContentType: "document", FileName: hdr.Filename,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testSession(), 0)
	res, err := c.Upload(context.Background(), "notes.txt", strings.NewReader("hello"), 5)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.FileURL != "/files/notes.txt" || res.FileName != "notes.txt" {
		t.Fatalf("result = %+v", res)
	}
}

func TestClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"token":"tok-1","user":{"id":"u9","name":"Ann","email":"ann@example.com"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, session.Session{}, 0)
	sess, err := c.Login(context.Background(), "Ann", "ann@example.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.UserID != "u9" || sess.Token != "tok-1" {
		t.Fatalf("session = %+v", sess)
	}
}
