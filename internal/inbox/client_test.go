package inbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL
	cfg.HTTPClient = server.Client()
	cfg.Backoff = time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientDefaultsAndValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected api key validation error")
	}
	client, err := New(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.baseURL != defaultBaseURL {
		t.Fatalf("expected default base url, got %s", client.baseURL)
	}
	if client.httpClient == nil || client.httpClient.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout")
	}
	if client.maxRetries != 0 {
		t.Fatalf("expected retries to default to 0")
	}
}

func TestReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inboxes/careinbox@agentmail.to/messages/msg-1/reply" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		var payload map[string]string
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if payload["text"] != "Here are some available times." {
			t.Fatalf("unexpected text %q", payload["text"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message_id":"msg-2"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	if err := client.Reply(context.Background(), "careinbox@agentmail.to", "msg-1", "Here are some available times."); err != nil {
		t.Fatalf("reply: %v", err)
	}
}

func TestReplyValidation(t *testing.T) {
	client, err := New(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Reply(context.Background(), "", "msg-1", "hi"); err == nil {
		t.Fatalf("expected validation error for empty inbox id")
	}
	if err := client.Reply(context.Background(), "inbox", "  ", "hi"); err == nil {
		t.Fatalf("expected validation error for empty message id")
	}
}

func TestUpdateLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inboxes/careinbox@agentmail.to/messages/msg-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPatch {
			t.Fatalf("unexpected method %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		got := string(body)
		if !strings.Contains(got, `"add_labels":["replied"]`) || !strings.Contains(got, `"remove_labels":["unreplied"]`) {
			t.Fatalf("unexpected body %s", got)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	err := client.UpdateLabels(context.Background(), "careinbox@agentmail.to", "msg-1", []string{"replied"}, []string{"unreplied"})
	if err != nil {
		t.Fatalf("update labels: %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&calls, 1)
		if current == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"server error"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	if err := client.Reply(context.Background(), "inbox", "msg-1", "hi"); err != nil {
		t.Fatalf("reply after retry: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"name":"not_found","message":"message not found"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 3})
	err := client.Reply(context.Background(), "inbox", "msg-gone", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "message not found") {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
