package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"torrentstream/internal/domain/ports"
)

func fakeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginPopulatesCredentialsAndToken(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "tok123",
			"refresh_token": "ref456",
			"sub":           "user-1",
		})
	})

	c := NewClient(Config{BaseURL: srv.URL})
	out, err := c.Login(context.Background(), ports.Credentials{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if out.AccessToken != "tok123" || out.UserID != "user-1" {
		t.Fatalf("Login result = %+v", out)
	}
	if c.accessToken != "tok123" {
		t.Fatalf("client did not retain access token")
	}
}

func TestFileListDecodesFiles(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"id": "f1", "name": "movie.mkv", "kind": "file"},
				{"id": "d1", "name": "season1", "kind": "folder"},
			},
			"next_page_token": "",
		})
	})

	c := NewClient(Config{BaseURL: srv.URL})
	page, err := c.FileList(context.Background(), "root", "")
	if err != nil {
		t.Fatalf("FileList: %v", err)
	}
	if len(page.Files) != 2 || page.Files[1].Kind != "folder" {
		t.Fatalf("FileList = %+v", page.Files)
	}
}

func TestNonTwoXXStatusReturnsError(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid token"}`))
	})

	c := NewClient(Config{BaseURL: srv.URL, AccessToken: "stale"})
	_, err := c.GetDownloadURL(context.Background(), "f1")
	if err == nil {
		t.Fatalf("expected an error for a 401 response")
	}
}

func TestGetTaskStatusMapsPhase(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"phase": "PHASE_TYPE_COMPLETE"})
	})

	c := NewClient(Config{BaseURL: srv.URL})
	status, err := c.GetTaskStatus(context.Background(), "t1", "f1")
	if err != nil {
		t.Fatalf("GetTaskStatus: %v", err)
	}
	if status != ports.RemoteDone {
		t.Fatalf("status = %v, want RemoteDone", status)
	}
}

func TestAuthorizationHeaderIsSent(t *testing.T) {
	var gotAuth string
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"web_content_link": "https://example.invalid/f1"})
	})

	c := NewClient(Config{BaseURL: srv.URL, AccessToken: "secret-token"})
	if _, err := c.GetDownloadURL(context.Background(), "f1"); err != nil {
		t.Fatalf("GetDownloadURL: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization header = %q", gotAuth)
	}
}
