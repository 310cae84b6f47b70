package contentstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeGitHub keeps files in memory keyed by contents path.
type fakeGitHub struct {
	mu    sync.Mutex
	files map[string]string // path -> sha
	puts  []putRequest
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/repos/acme/sops/contents/"
	if len(r.URL.Path) < len(prefix) || r.URL.Path[:len(prefix)] != prefix {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := r.URL.Path[len(prefix):]

	switch r.Method {
	case http.MethodGet:
		if path == "published" {
			json.NewEncoder(w).Encode([]Entry{{Name: "doc1", Path: "published/doc1", Type: "dir"}})
			return
		}
		sha, ok := f.files[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(Entry{Path: path, SHA: sha})
	case http.MethodPut:
		var req putRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.puts = append(f.puts, req)
		f.files[path] = "sha-" + path
		w.WriteHeader(http.StatusCreated)
	}
}

func TestPutFile_CreateThenUpdate(t *testing.T) {
	fake := &fakeGitHub{files: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, "acme/sops", "", "tok")
	ctx := context.Background()

	if err := c.PutFile(ctx, "published/doc1/semantic_chunks.json", []byte("[]"), "publish"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.PutFile(ctx, "published/doc1/semantic_chunks.json", []byte("[1]"), "publish"); err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(fake.puts) != 2 {
		t.Fatalf("expected 2 puts, got %d", len(fake.puts))
	}
	if fake.puts[0].SHA != "" {
		t.Errorf("expected no sha on create, got %q", fake.puts[0].SHA)
	}
	if fake.puts[1].SHA != "sha-published/doc1/semantic_chunks.json" {
		t.Errorf("expected existing sha on update, got %q", fake.puts[1].SHA)
	}
	if fake.puts[1].Branch != "main" {
		t.Errorf("expected default branch main, got %q", fake.puts[1].Branch)
	}
	decoded, _ := base64.StdEncoding.DecodeString(fake.puts[1].Content)
	if string(decoded) != "[1]" {
		t.Errorf("expected base64 content, got %q", decoded)
	}
}

func TestListDir(t *testing.T) {
	srv := httptest.NewServer(&fakeGitHub{files: map[string]string{}})
	defer srv.Close()
	c := NewClient(srv.URL, "acme/sops", "main", "tok")

	entries, err := c.ListDir(context.Background(), "published")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "doc1" || entries[0].Type != "dir" {
		t.Errorf("unexpected entries %+v", entries)
	}

	missing, err := c.ListDir(context.Background(), "nothing/here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("expected empty listing, got %+v", missing)
	}
}

func TestPutFile_RetryableStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnprocessableEntity, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(tc.status)
		}))
		err := NewClient(srv.URL, "acme/sops", "main", "tok").PutFile(context.Background(), "a.json", []byte("{}"), "m")
		srv.Close()

		var re *RetryableError
		if errors.As(err, &re) != tc.retryable {
			t.Errorf("status %d: retryable=%v, got %v", tc.status, tc.retryable, err)
		}
	}
}

func TestContentsURL_EscapesSegments(t *testing.T) {
	c := NewClient("https://example.test/", "acme/sops", "main", "")
	got := c.contentsURL("/published/Store SOP/image 1.png")
	want := "https://example.test/repos/acme/sops/contents/published/Store%20SOP/image%201.png"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
