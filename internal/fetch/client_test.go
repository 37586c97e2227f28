package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	c := NewClient(baseURL, "test-key", "2021-06-14", nil)
	c.delay = 0
	return c
}

func logEntry(id string) map[string]any {
	return map[string]any{"log_id": id}
}

func TestFetchLogs_Paginates(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/workspaces/ws-1/logs") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("page_limit"); got != "500" {
			t.Errorf("page_limit = %q", got)
		}
		if got := r.URL.Query().Get("version"); got != "2021-06-14" {
			t.Errorf("version = %q", got)
		}
		user, pass, _ := r.BasicAuth()
		if user != "apikey" || pass != "test-key" {
			t.Errorf("unexpected auth %q/%q", user, pass)
		}

		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)

		page := map[string]any{}
		if cursor == "" {
			page["logs"] = []any{logEntry("1"), logEntry("2")}
			page["pagination"] = map[string]any{"next_cursor": "c2"}
		} else {
			page["logs"] = []any{logEntry("3")}
			page["pagination"] = map[string]any{}
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	logs, err := testClient(server.URL).FetchLogs(context.Background(), Params{WorkspaceID: "ws-1", Count: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 3 {
		t.Errorf("expected 3 logs, got %d", len(logs))
	}
	if len(cursors) != 2 || cursors[1] != "c2" {
		t.Errorf("cursor sequence = %v", cursors)
	}
}

func TestFetchLogs_StopsAtRequestedCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"logs":       []any{logEntry("1"), logEntry("2"), logEntry("3")},
			"pagination": map[string]any{"next_cursor": "more"},
		})
	}))
	defer server.Close()

	logs, err := testClient(server.URL).FetchLogs(context.Background(), Params{WorkspaceID: "ws-1", Count: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("expected fetch capped at 2, got %d", len(logs))
	}
}

func TestFetchLogs_AssistantDefaultFilters(t *testing.T) {
	var gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/logs" {
			t.Errorf("assistant fetch should use /v1/logs, got %q", r.URL.Path)
		}
		gotFilter = r.URL.Query().Get("filter")
		json.NewEncoder(w).Encode(map[string]any{"logs": []any{}})
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchLogs(context.Background(), Params{
		AssistantID: "asst-1",
		Filters:     []string{"language::en"},
		Count:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "language::en,request.context.system.assistant_id::asst-1"
	if gotFilter != want {
		t.Errorf("filter = %q, want %q", gotFilter, want)
	}
}

func TestFetchLogs_ErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": "Unauthorized", "code": 401})
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchLogs(context.Background(), Params{WorkspaceID: "ws-1", Count: 5})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"workspace ok", Params{WorkspaceID: "ws", Count: 10}, false},
		{"skill ok", Params{SkillID: "sk", Count: 10}, false},
		{"assistant ok", Params{AssistantID: "as", Count: 10}, false},
		{"no identifier", Params{Count: 10}, true},
		{"zero count", Params{WorkspaceID: "ws"}, true},
		{"negative count", Params{WorkspaceID: "ws", Count: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheName_StripsSpecialCharacters(t *testing.T) {
	name := CacheName(Params{WorkspaceID: "ws/../1 £2", Count: 500})
	if name != "logs_ws12_500.json" {
		t.Errorf("CacheName = %q", name)
	}
}

func TestFetchOrLoad_UsesCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"logs": []any{logEntry("1")}})
	}))
	defer server.Close()

	cache := NewCache(t.TempDir())
	client := testClient(server.URL)
	params := Params{WorkspaceID: "ws-1", Count: 5}

	logs, fromCache, err := client.FetchOrLoad(context.Background(), params, cache, false)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if fromCache || len(logs) != 1 {
		t.Fatalf("first fetch should hit the API: fromCache=%v logs=%d", fromCache, len(logs))
	}

	logs, fromCache, err = client.FetchOrLoad(context.Background(), params, cache, false)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !fromCache || len(logs) != 1 {
		t.Errorf("second fetch should load the cache: fromCache=%v logs=%d", fromCache, len(logs))
	}
	if calls != 1 {
		t.Errorf("expected 1 API call, got %d", calls)
	}

	_, fromCache, err = client.FetchOrLoad(context.Background(), params, cache, true)
	if err != nil {
		t.Fatalf("overwrite fetch: %v", err)
	}
	if fromCache || calls != 2 {
		t.Errorf("overwrite should refetch: fromCache=%v calls=%d", fromCache, calls)
	}
}

func TestFetchLogs_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"logs":       []any{logEntry("1")},
			"pagination": map[string]any{"next_cursor": "forever"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	client.delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchLogs(ctx, Params{WorkspaceID: "ws-1", Count: 100})
	if err == nil {
		t.Fatal("expected context error")
	}
}
