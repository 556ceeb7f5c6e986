package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/velikanov/folio/internal/chat"
	"github.com/velikanov/folio/internal/content"
	"github.com/velikanov/folio/internal/prompt"
	"github.com/velikanov/folio/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog := content.NewCatalog(store)
	assembler := prompt.New(0)
	sessions := chat.NewRegistry(chat.Deps{
		Content:   catalog,
		Assembler: assembler,
	}, time.Hour)

	return MCPDeps{
		Catalog:   catalog,
		Assembler: assembler,
		Sessions:  sessions,
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestMCPTool_PortfolioOverview(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpPortfolioOverview(deps)

	result, err := handler(context.Background(), makeCallToolRequest("portfolio_overview", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if text := toolText(t, result); text != "The portfolio has no content yet." {
		t.Fatalf("empty portfolio: %s", text)
	}

	if err := store.AddSkill(storage.Skill{
		ID: "s1", Name: "Go", Category: "backend", Proficiency: 90, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seeding skill: %v", err)
	}
	deps.Catalog.Invalidate()

	result, err = handler(context.Background(), makeCallToolRequest("portfolio_overview", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); !strings.Contains(text, "Go") {
		t.Fatalf("overview missing seeded skill: %s", text)
	}
}

func TestMCPTool_SearchKnowledge(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seed := []storage.KnowledgeItem{
		{ID: "k1", Topic: "Go", Description: "Backend services in Go", Proficiency: 90},
		{ID: "k2", Topic: "Kubernetes", Description: "Cluster operations", Proficiency: 70},
	}
	for _, k := range seed {
		k.CreatedAt = time.Now()
		if err := store.AddKnowledgeItem(k); err != nil {
			t.Fatalf("seeding knowledge: %v", err)
		}
	}
	handler := mcpSearchKnowledge(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_knowledge", map[string]interface{}{
		"query": "go",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var matches []storage.KnowledgeItem
	if err := json.Unmarshal([]byte(toolText(t, result)), &matches); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(matches) != 1 || matches[0].Topic != "Go" {
		t.Fatalf("matches = %v", matches)
	}
}

func TestMCPTool_SearchKnowledge_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchKnowledge(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_knowledge", map[string]interface{}{
		"query": "nonexistent",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPTool_SearchKnowledge_RequiresQuery(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchKnowledge(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_knowledge", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for missing query")
	}
}

func TestMCPTool_SearchKnowledge_Limit(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	for i := 0; i < 10; i++ {
		if err := store.AddKnowledgeItem(storage.KnowledgeItem{
			ID:          "k" + string(rune('a'+i)),
			Topic:       "go topic",
			Description: "desc",
			Proficiency: 50,
			CreatedAt:   time.Now(),
		}); err != nil {
			t.Fatalf("seeding knowledge: %v", err)
		}
	}
	handler := mcpSearchKnowledge(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_knowledge", map[string]interface{}{
		"query": "go",
		"limit": 3,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var matches []json.RawMessage
	if err := json.Unmarshal([]byte(toolText(t, result)), &matches); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
}

func TestMCPTool_Ask(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if err := store.AddKnowledgeItem(storage.KnowledgeItem{
		ID: "k1", Topic: "go", Description: "I write Go services.", Proficiency: 90,
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seeding knowledge: %v", err)
	}
	handler := mcpAsk(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"question": "tell me about go",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if text := toolText(t, result); text != "I write Go services." {
		t.Fatalf("answer = %s", text)
	}

	// The one-shot session must not linger.
	if n := deps.Sessions.Len(); n != 0 {
		t.Fatalf("sessions remaining = %d, want 0", n)
	}
}

func TestMCPTool_Ask_RequiresQuestion(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAsk(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for missing question")
	}
}

func TestMCPResource_Profile(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpResourceProfile(deps)

	if _, err := handler(context.Background(), makeReadResourceRequest("portfolio://profile")); err == nil {
		t.Fatal("expected error without a profile")
	}

	if err := store.UpsertProfile(storage.Profile{
		FullName:     "Ada Lovelace",
		GeminiAPIKey: "super-secret",
	}); err != nil {
		t.Fatalf("seeding profile: %v", err)
	}
	deps.Catalog.Invalidate()

	contents, err := handler(context.Background(), makeReadResourceRequest("portfolio://profile"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if strings.Contains(tc.Text, "super-secret") {
		t.Fatal("profile resource leaks the Gemini key")
	}

	var p storage.Profile
	if err := json.Unmarshal([]byte(tc.Text), &p); err != nil {
		t.Fatalf("failed to parse profile JSON: %v", err)
	}
	if p.FullName != "Ada Lovelace" {
		t.Fatalf("profile = %+v", p)
	}
}
