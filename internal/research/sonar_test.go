package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newSonarServer(t *testing.T, status int, body string, hits *atomic.Int32, seen *map[string]any) (*Sonar, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))

	transport := &http.Transport{}
	client := &http.Client{Transport: transport}
	t.Cleanup(func() {
		transport.CloseIdleConnections()
		srv.Close()
	})

	s, err := NewSonar(SonarConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		Model:      "sonar",
		HTTPClient: client,
	})
	if err != nil {
		t.Fatalf("NewSonar failed: %v", err)
	}
	return s, srv
}

func TestSonarSearch(t *testing.T) {
	var hits atomic.Int32
	var req map[string]any
	body := `{"id":"1","object":"chat.completion","created":1,"model":"sonar",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Melatonin is generally safe short-term."}}]}`
	s, _ := newSonarServer(t, http.StatusOK, body, &hits, &req)

	got, err := s.Search(context.Background(), "melatonin safety")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got != "Melatonin is generally safe short-term." {
		t.Errorf("Unexpected summary %q", got)
	}
	if req["model"] != "sonar" {
		t.Errorf("Expected model sonar, got %v", req["model"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("Expected system and user messages, got %v", req["messages"])
	}
}

func TestSonarDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	s, _ := newSonarServer(t, http.StatusInternalServerError, `{"error":{"message":"boom"}}`, &hits, nil)

	if _, err := s.Search(context.Background(), "q"); err == nil {
		t.Fatal("Expected error from failing provider")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected exactly one request, got %d", hits.Load())
	}
}

func TestSonarNoChoices(t *testing.T) {
	var hits atomic.Int32
	s, _ := newSonarServer(t, http.StatusOK, `{"id":"1","object":"chat.completion","created":1,"model":"sonar","choices":[]}`, &hits, nil)

	if _, err := s.Search(context.Background(), "q"); err != ErrNoChoices {
		t.Errorf("Expected ErrNoChoices, got %v", err)
	}
}

func TestNewSonarValidates(t *testing.T) {
	if _, err := NewSonar(SonarConfig{Model: "sonar"}); err == nil {
		t.Error("Expected error without API key")
	}
	if _, err := NewSonar(SonarConfig{APIKey: "k"}); err == nil {
		t.Error("Expected error without model")
	}
}
