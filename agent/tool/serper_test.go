package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
)

func TestSearchFormatsOrganicResults(t *testing.T) {
	t.Parallel()

	var gotKey string
	var gotReq serperRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotKey = r.Header.Get("X-API-KEY")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{
			"knowledgeGraph": {"title": "Kevin O'Leary", "description": "Canadian businessman"},
			"organic": [
				{"title": "Kevin O'Leary on royalties", "link": "https://a.example", "snippet": "Money has no feelings."},
				{"title": "Shark Tank clip", "link": "https://b.example", "snippet": "You're dead to me."},
				{"title": "Third", "link": "https://c.example"}
			]
		}`)
	}))
	t.Cleanup(server.Close)

	catalog := NewCatalog(Config{
		SerperAPIKey: "secret",
		SerperURL:    server.URL,
		MaxResults:   2,
	}, WithHTTPClient(server.Client()))

	out, err := catalog.Search(context.Background(), "Kevin O'Leary interview")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("X-API-KEY = %q", gotKey)
	}
	if gotReq.Q != "Kevin O'Leary interview" || gotReq.Num != 2 {
		t.Fatalf("unexpected request: %#v", gotReq)
	}
	for _, want := range []string{"About Kevin O'Leary: Canadian businessman", "1. Kevin O'Leary on royalties", "Snippet: You're dead to me."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Third") {
		t.Fatalf("output exceeds max results:\n%s", out)
	}
}

func TestSearchMissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewCatalog(Config{}).Search(context.Background(), "anything")
	if !errors.Is(err, contractx.ErrConfigurationMissing) {
		t.Fatalf("Search() error = %v, want ErrConfigurationMissing", err)
	}
}

func TestSearchToolReportsProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	catalog := NewCatalog(Config{SerperAPIKey: "k", SerperURL: server.URL}, WithHTTPClient(server.Client()))
	_, executor, err := catalog.BuildForAgent(contractx.RolePersonaIdentifier, []string{ToolSearchInternet})
	if err != nil {
		t.Fatalf("BuildForAgent() error = %v", err)
	}

	out, err := executor(context.Background(), ToolSearchInternet, map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("executor error = %v", err)
	}
	if !strings.Contains(out.Error, "HTTP 429") {
		t.Fatalf("unexpected tool error: %q", out.Error)
	}
}
