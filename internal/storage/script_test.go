package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

const marketScriptJSON = `[
  {"title": "Gate", "body": "Guard: Halt!\nGuard: State your business. | options([[Trade|Market]], [[Leave|END]])"},
  {"title": "Market", "tags": "crowd[dense]", "body": "Vendor: Fresh fruit!"}
]`

const marketScriptYAML = `- title: Gate
  body: |
    Guard: Halt!
    Guard: State your business. | options([[Trade|Market]], [[Leave|END]])
- title: Market
  tags: "crowd[dense]"
  body: "Vendor: Fresh fruit!"
`

func TestRedisStorage_ListScripts(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	writeScript(t, dataDir, "market.yaml", marketScriptYAML)
	writeScript(t, dataDir, "intro.json", marketScriptJSON)
	writeScript(t, dataDir, "notes.txt", "not a script")

	scripts, err := store.ListScripts(context.Background())
	if err != nil {
		t.Fatalf("Failed to list scripts: %v", err)
	}

	if len(scripts) != 2 {
		t.Fatalf("Expected 2 scripts, got %d: %v", len(scripts), scripts)
	}
	if scripts[0] != "intro.json" || scripts[1] != "market.yaml" {
		t.Errorf("Expected sorted [intro.json market.yaml], got %v", scripts)
	}
}

func TestRedisStorage_GetScriptJSON(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	writeScript(t, dataDir, "market.json", marketScriptJSON)

	records, err := store.GetScript(context.Background(), "market.json")
	if err != nil {
		t.Fatalf("Failed to get script: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Title != "Gate" {
		t.Errorf("Expected first title 'Gate', got %q", records[0].Title)
	}
	if records[1].Tags != "crowd[dense]" {
		t.Errorf("Expected tags 'crowd[dense]', got %q", records[1].Tags)
	}
}

func TestRedisStorage_GetScriptYAML(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	writeScript(t, dataDir, "market.yaml", marketScriptYAML)

	records, err := store.GetScript(context.Background(), "market.yaml")
	if err != nil {
		t.Fatalf("Failed to get script: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Title != "Gate" {
		t.Errorf("Expected first title 'Gate', got %q", records[0].Title)
	}
}

func TestRedisStorage_GetScriptNotFound(t *testing.T) {
	store, mr, _ := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	_, err := store.GetScript(context.Background(), "missing.json")
	if err == nil {
		t.Fatal("Expected error for missing script")
	}
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestRedisStorage_GetGraph(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	writeScript(t, dataDir, "market.json", marketScriptJSON)

	graph, issues, err := store.GetGraph(context.Background(), "market.json")
	if err != nil {
		t.Fatalf("Failed to get graph: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}
	if graph.Len() != 2 {
		t.Errorf("Expected 2 nodes, got %d", graph.Len())
	}

	gate, ok := graph.Node("Gate")
	if !ok {
		t.Fatal("Expected node 'Gate'")
	}
	if len(gate.Lines) != 2 {
		t.Fatalf("Expected 2 lines in Gate, got %d", len(gate.Lines))
	}
	opts := gate.Lines[1].Options
	if len(opts) != 2 || opts[0].Destination != "Market" || opts[1].Destination != "END" {
		t.Errorf("Unexpected options: %+v", opts)
	}
}

func TestRedisStorage_GetGraphCaches(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	writeScript(t, dataDir, "intro.json", `[{"title": "One", "body": "A: first"}]`)

	graph, _, err := store.GetGraph(ctx, "intro.json")
	if err != nil {
		t.Fatalf("Failed to get graph: %v", err)
	}
	if _, ok := graph.Node("One"); !ok {
		t.Fatal("Expected node 'One'")
	}

	// Rewrite the file; the cached parse should still be served
	writeScript(t, dataDir, "intro.json", `[{"title": "Two", "body": "A: second"}]`)

	graph, _, err = store.GetGraph(ctx, "intro.json")
	if err != nil {
		t.Fatalf("Failed to get cached graph: %v", err)
	}
	if _, ok := graph.Node("One"); !ok {
		t.Error("Expected cached parse to keep node 'One'")
	}

	// Invalidation forces a re-read
	store.InvalidateScript("intro.json")

	graph, _, err = store.GetGraph(ctx, "intro.json")
	if err != nil {
		t.Fatalf("Failed to get graph after invalidation: %v", err)
	}
	if _, ok := graph.Node("Two"); !ok {
		t.Error("Expected re-read to pick up node 'Two'")
	}
}

func TestRedisStorage_GetGraphCachesIssues(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	// Option with no destination is reported and dropped
	writeScript(t, dataDir, "broken.json", `[{"title": "Gate", "body": "Guard: Pick. | options([[Go]])"}]`)

	_, issues, err := store.GetGraph(ctx, "broken.json")
	if err != nil {
		t.Fatalf("Failed to get graph: %v", err)
	}
	if len(issues) == 0 {
		t.Fatal("Expected issues for option without destination")
	}

	_, cached, err := store.GetGraph(ctx, "broken.json")
	if err != nil {
		t.Fatalf("Failed to get cached graph: %v", err)
	}
	if len(cached) != len(issues) {
		t.Errorf("Expected cached issues to match: %d vs %d", len(cached), len(issues))
	}
}

func TestRedisStorage_InvalidateAll(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	writeScript(t, dataDir, "intro.json", `[{"title": "One", "body": "A: first"}]`)

	if _, _, err := store.GetGraph(ctx, "intro.json"); err != nil {
		t.Fatalf("Failed to get graph: %v", err)
	}

	writeScript(t, dataDir, "intro.json", `[{"title": "Two", "body": "A: second"}]`)
	store.InvalidateAll()

	graph, _, err := store.GetGraph(ctx, "intro.json")
	if err != nil {
		t.Fatalf("Failed to get graph after invalidation: %v", err)
	}
	if _, ok := graph.Node("Two"); !ok {
		t.Error("Expected re-read to pick up node 'Two'")
	}
}
