package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// Script operations (filesystem-backed)

// scriptFormat maps a filename to the decode format, or "" for files that
// are not scripts.
func scriptFormat(filename string) string {
	switch filepath.Ext(filename) {
	case ".json":
		return "json"
	case ".yaml":
		return "yaml"
	case ".yml":
		return "yml"
	}
	return ""
}

func (r *RedisStorage) ListScripts(ctx context.Context) ([]string, error) {
	scriptsDir := filepath.Join(r.dataDir, "scripts")
	var scripts []string

	err := filepath.WalkDir(scriptsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || scriptFormat(path) == "" {
			return nil
		}
		scripts = append(scripts, filepath.Base(path))
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk scripts directory", "error", err)
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}

	sort.Strings(scripts)
	return scripts, nil
}

func (r *RedisStorage) GetScript(ctx context.Context, filename string) ([]conversation.Record, error) {
	format := scriptFormat(filename)
	if format == "" {
		return nil, fmt.Errorf("script %q: unsupported extension", filename)
	}

	path := filepath.Join(r.dataDir, "scripts", filepath.Base(filename))
	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %q: %w", filename, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	records, err := conversation.UnmarshalRecords(file, format)
	if err != nil {
		return nil, fmt.Errorf("script %q: %w", filename, err)
	}
	return records, nil
}

// GetGraph returns the shared parse of a script, building and caching it on
// first use. Load diagnostics are cached alongside the graph and logged once
// when the parse happens. Callers that play the graph must Clone it first.
func (r *RedisStorage) GetGraph(ctx context.Context, filename string) (*conversation.Graph, []conversation.Issue, error) {
	key := filepath.Base(filename)

	r.mu.RLock()
	cached, ok := r.graphs[key]
	r.mu.RUnlock()
	if ok {
		return cached.graph, cached.issues, nil
	}

	records, err := r.GetScript(ctx, filename)
	if err != nil {
		return nil, nil, err
	}

	graph, issues := conversation.Load(records, r.matching)
	for _, issue := range issues {
		r.logger.Warn("Script issue", "script", key, "issue", issue.String())
	}

	r.mu.Lock()
	// Another request may have parsed the same script meanwhile; keep the
	// first cached parse so callers share one graph.
	if prior, ok := r.graphs[key]; ok {
		r.mu.Unlock()
		return prior.graph, prior.issues, nil
	}
	r.graphs[key] = &cachedGraph{graph: graph, issues: issues}
	r.mu.Unlock()

	return graph, issues, nil
}

// InvalidateScript drops a script's cached parse so the next GetGraph
// re-reads the file.
func (r *RedisStorage) InvalidateScript(filename string) {
	key := filepath.Base(filename)
	r.mu.Lock()
	_, ok := r.graphs[key]
	delete(r.graphs, key)
	r.mu.Unlock()
	if ok {
		r.logger.Debug("Invalidated cached script", "script", key)
	}
}

// InvalidateAll drops every cached parse. Used when the scripts directory
// itself changes shape.
func (r *RedisStorage) InvalidateAll() {
	r.mu.Lock()
	n := len(r.graphs)
	r.graphs = make(map[string]*cachedGraph)
	r.mu.Unlock()
	if n > 0 {
		r.logger.Debug("Invalidated all cached scripts", "count", n)
	}
}

// hasScriptExt reports whether a path names a script file. Watch events use
// it to ignore editor temp files.
func hasScriptExt(path string) bool {
	return scriptFormat(strings.ToLower(path)) != ""
}
