package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteSendsTemplateAndPayload(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"event_type\":\"standalone\"}"}}]}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := c.Complete(context.Background(), Prompt{
		Template: "Classify the event.",
		Version:  "v2",
		Payload:  map[string]string{"title": "Jazz Night"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if out != `{"event_type":"standalone"}` {
		t.Errorf("content = %q", out)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if !strings.Contains(got.Messages[0].Content, "Classify the event.") {
		t.Errorf("system message = %q", got.Messages[0].Content)
	}
	if !strings.Contains(got.Messages[0].Content, "template v2") {
		t.Errorf("system message should carry the template version, got %q", got.Messages[0].Content)
	}
	if !strings.Contains(got.Messages[1].Content, "Jazz Night") {
		t.Errorf("user message = %q", got.Messages[1].Content)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"empty choices", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>nope</html>`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if _, err := c.Complete(context.Background(), Prompt{Template: "t", Version: "v1"}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected an error without a base URL")
	}
}
