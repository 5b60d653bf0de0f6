package db

import (
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "techstroke-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := New(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func TestSnippetOperations(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	created, err := db.CreateSnippet("Quicksort", "classic", "def qs(xs): ...", []string{"python", "sorting"})
	if err != nil {
		t.Fatalf("Failed to create snippet: %v", err)
	}
	if created.ID == 0 {
		t.Error("Snippet should have an id")
	}
	if len(created.Tags) != 2 || created.Tags[0] != "python" {
		t.Errorf("Unexpected tags: %v", created.Tags)
	}

	got, err := db.GetSnippet(created.ID)
	if err != nil {
		t.Fatalf("Failed to get snippet: %v", err)
	}
	if got == nil || got.Title != "Quicksort" {
		t.Errorf("Unexpected snippet: %+v", got)
	}

	updated, err := db.UpdateSnippet(created.ID, "Quicksort v2", "faster", "def qs2(xs): ...", []string{"python"})
	if err != nil {
		t.Fatalf("Failed to update snippet: %v", err)
	}
	if updated.Title != "Quicksort v2" || len(updated.Tags) != 1 {
		t.Errorf("Update not applied: %+v", updated)
	}

	list, err := db.ListSnippets(20, 0)
	if err != nil {
		t.Fatalf("Failed to list snippets: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 snippet, got %d", len(list))
	}

	if err := db.DeleteSnippet(created.ID); err != nil {
		t.Fatalf("Failed to delete snippet: %v", err)
	}
	gone, err := db.GetSnippet(created.ID)
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if gone != nil {
		t.Error("Snippet should be gone after delete")
	}
}

func TestEnvVariableOperations(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	created, err := db.CreateEnvVariable("API_KEY", "secret")
	if err != nil {
		t.Fatalf("Failed to create env variable: %v", err)
	}

	// Names are unique.
	if _, err := db.CreateEnvVariable("API_KEY", "other"); err == nil {
		t.Error("Duplicate name should be rejected")
	}

	updated, err := db.UpdateEnvVariable(created.ID, "API_KEY", "rotated")
	if err != nil {
		t.Fatalf("Failed to update env variable: %v", err)
	}
	if updated.Value != "rotated" {
		t.Errorf("Expected rotated value, got %q", updated.Value)
	}

	vars, err := db.ListEnvVariables()
	if err != nil {
		t.Fatalf("Failed to list env variables: %v", err)
	}
	if len(vars) != 1 {
		t.Errorf("Expected 1 variable, got %d", len(vars))
	}

	if err := db.DeleteEnvVariable(created.ID); err != nil {
		t.Fatalf("Failed to delete env variable: %v", err)
	}
}

func TestDocumentationArchive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	first, err := db.SaveDocumentation("doc-room", "https://github.com/acme/demo", "# Overview")
	if err != nil {
		t.Fatalf("Failed to save documentation: %v", err)
	}
	if first.GeneratedDocs != "# Overview" {
		t.Errorf("Unexpected docs: %q", first.GeneratedDocs)
	}

	if _, err := db.SaveDocumentation("doc-room", "https://github.com/acme/demo", "# Overview v2"); err != nil {
		t.Fatalf("Failed to save documentation: %v", err)
	}

	latest, err := db.GetLatestDocumentation("doc-room")
	if err != nil {
		t.Fatalf("Failed to get latest documentation: %v", err)
	}
	if latest == nil || latest.GeneratedDocs != "# Overview v2" {
		t.Errorf("Expected latest entry, got %+v", latest)
	}

	none, err := db.GetLatestDocumentation("never-archived")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if none != nil {
		t.Error("Unknown room should have no archive entries")
	}

	docs, err := db.ListDocumentation(20, 0)
	if err != nil {
		t.Fatalf("Failed to list documentation: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(docs))
	}
}

func TestStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	db.CreateSnippet("a", "", "x", nil)
	db.CreateEnvVariable("A", "1")

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats["snippet_count"] != 1 {
		t.Errorf("Expected 1 snippet, got %v", stats["snippet_count"])
	}
	if stats["env_variable_count"] != 1 {
		t.Errorf("Expected 1 env variable, got %v", stats["env_variable_count"])
	}
	if stats["documentation_count"] != 0 {
		t.Errorf("Expected 0 documentation entries, got %v", stats["documentation_count"])
	}
}
