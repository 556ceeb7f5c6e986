package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// overrideClient points all commands at the test server for one test.
func (ts *testServer) overrideClient(t *testing.T) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

func TestAskCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chat/sessions":                 `{"id":"sess-1","language":"en","responding":false,"transcript":[]}`,
		"POST /api/chat/sessions/sess-1/messages": `{"text":"I build Go services.","is_bot":true}`,
		"DELETE /api/chat/sessions/sess-1":        `{"status":"deleted"}`,
	})
	ts.overrideClient(t)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask", "what", "do", "you", "do"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) < 2 {
		t.Fatalf("expected create + message requests, got %d", len(ts.requests))
	}
	var sent map[string]string
	if err := json.Unmarshal([]byte(ts.requests[1].Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sent["text"] != "what do you do" {
		t.Errorf("question = %q, want joined args", sent["text"])
	}
}

func TestAskCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing question")
	}
}

func TestKnowledgeAdd(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /admin/knowledge/": `{"id":"k-1","topic":"go","description":"stuff","proficiency":80}`,
	})

	client := ts.client()
	resp, err := client.post("/admin/knowledge/", map[string]any{
		"topic": "go", "description": "stuff", "proficiency": 80,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var item map[string]any
	if err := decodeJSON(resp, &item); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if item["id"] != "k-1" {
		t.Errorf("id = %v, want k-1", item["id"])
	}

	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["topic"] != "go" {
		t.Errorf("body.topic = %v, want go", body["topic"])
	}
}

func TestKnowledgeList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /admin/knowledge/": `[{"id":"k-1","topic":"go","description":"d","proficiency":50}]`,
	})

	client := ts.client()
	resp, err := client.get("/admin/knowledge/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &items); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "k-1" {
		t.Fatalf("items = %v", items)
	}
}

func TestMessagesList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /admin/messages/": `[{"id":"m-1","name":"V","email":"v@example.com","message":"hi","read":false,"created_at":"2025-01-01T00:00:00Z"}]`,
	})

	client := ts.client()
	resp, err := client.get("/admin/messages/?limit=20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var msgs []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Read    bool   `json:"read"`
	}
	if err := decodeJSON(resp, &msgs); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Message != "hi" || msgs[0].Read {
		t.Fatalf("msgs = %v", msgs)
	}

	if !strings.Contains(ts.requests[0].Path, "limit=20") {
		t.Errorf("path = %q, want limit param", ts.requests[0].Path)
	}
}

func TestImportCommand_URL(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /admin/import": `{"id":"job-1","status":"queued"}`,
	})
	ts.overrideClient(t)
	defer rootCmd.SetArgs(nil)
	defer importCmd.Flags().Set("url", "")
	defer importCmd.Flags().Set("topic", "")

	rootCmd.SetArgs([]string{"import", "--url", "https://example.com/about", "--topic", "About"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["kind"] != "url" || body["source"] != "https://example.com/about" || body["topic"] != "About" {
		t.Errorf("body = %v", body)
	}
}

func TestImportCommand_RequiresExactlyOneSource(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"import"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error with neither --resume nor --url")
	}
}

func TestAnalyticsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /admin/analytics": `{"total_views":10,"unique_visitors":4,"by_page":[{"path":"/","count":6}],"devices":{"desktop":8},"browsers":{"Chrome":7}}`,
	})
	ts.overrideClient(t)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"analytics", "--days", "30"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(ts.requests[0].Path, "days=30") {
		t.Errorf("path = %q, want days param", ts.requests[0].Path)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	if _, err := client.get("/health"); err == nil {
		t.Fatal("expected error for stopped server")
	} else if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get("/profile")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	if err := decodeJSON(resp, &result); err == nil {
		t.Fatal("expected error for 401 response")
	} else if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestAbsPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "resume.pdf")
	if err := os.WriteFile(file, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	got, err := absPath(file)
	if err != nil {
		t.Fatalf("absPath: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("path %q is not absolute", got)
	}

	if _, err := absPath(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := absPath(dir); err == nil {
		t.Error("expected error for directory")
	}
}
