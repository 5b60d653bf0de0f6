// Package db is the sqlite-backed store for the CRUD surface around the
// coordinator: snippets, environment variables, and the documentation
// archive. Live room state never touches it.
package db

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

type Snippet struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type EnvVariable struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Documentation struct {
	ID            int       `json:"id"`
	RoomID        string    `json:"room_id,omitempty"`
	RepositoryURL string    `json:"repository_url"`
	GeneratedDocs string    `json:"generated_docs"`
	CreatedAt     time.Time `json:"created_at"`
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snippets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT DEFAULT '',
		code TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS env_variables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		value TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documentation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT DEFAULT '',
		repository_url TEXT NOT NULL DEFAULT '',
		generated_docs TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documentation_room_id ON documentation(room_id);
	CREATE INDEX IF NOT EXISTS idx_documentation_created_at ON documentation(created_at DESC);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Snippet operations

func (d *Database) CreateSnippet(title, description, code string, tags []string) (*Snippet, error) {
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	result, err := d.db.Exec(
		"INSERT INTO snippets (title, description, code, tags) VALUES (?, ?, ?, ?)",
		title, description, code, string(rawTags),
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.GetSnippet(int(id))
}

func (d *Database) GetSnippet(id int) (*Snippet, error) {
	row := d.db.QueryRow(
		"SELECT id, title, description, code, tags, created_at, updated_at FROM snippets WHERE id = ?",
		id,
	)
	return scanSnippet(row)
}

func (d *Database) ListSnippets(limit, offset int) ([]Snippet, error) {
	rows, err := d.db.Query(
		"SELECT id, title, description, code, tags, created_at, updated_at FROM snippets ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, *s)
	}
	return snippets, rows.Err()
}

func (d *Database) UpdateSnippet(id int, title, description, code string, tags []string) (*Snippet, error) {
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	_, err = d.db.Exec(
		"UPDATE snippets SET title = ?, description = ?, code = ?, tags = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		title, description, code, string(rawTags), id,
	)
	if err != nil {
		return nil, err
	}
	return d.GetSnippet(id)
}

func (d *Database) DeleteSnippet(id int) error {
	_, err := d.db.Exec("DELETE FROM snippets WHERE id = ?", id)
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnippet(row scannable) (*Snippet, error) {
	var s Snippet
	var rawTags string
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Code, &rawTags, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rawTags), &s.Tags); err != nil {
		s.Tags = nil
	}
	return &s, nil
}

// Environment variable operations

func (d *Database) CreateEnvVariable(name, value string) (*EnvVariable, error) {
	result, err := d.db.Exec(
		"INSERT INTO env_variables (name, value) VALUES (?, ?)",
		name, value,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.GetEnvVariable(int(id))
}

func (d *Database) GetEnvVariable(id int) (*EnvVariable, error) {
	row := d.db.QueryRow(
		"SELECT id, name, value, created_at, updated_at FROM env_variables WHERE id = ?",
		id,
	)

	var v EnvVariable
	err := row.Scan(&v.ID, &v.Name, &v.Value, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *Database) ListEnvVariables() ([]EnvVariable, error) {
	rows, err := d.db.Query(
		"SELECT id, name, value, created_at, updated_at FROM env_variables ORDER BY name ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vars []EnvVariable
	for rows.Next() {
		var v EnvVariable
		if err := rows.Scan(&v.ID, &v.Name, &v.Value, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

func (d *Database) UpdateEnvVariable(id int, name, value string) (*EnvVariable, error) {
	_, err := d.db.Exec(
		"UPDATE env_variables SET name = ?, value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		name, value, id,
	)
	if err != nil {
		return nil, err
	}
	return d.GetEnvVariable(id)
}

func (d *Database) DeleteEnvVariable(id int) error {
	_, err := d.db.Exec("DELETE FROM env_variables WHERE id = ?", id)
	return err
}

// Documentation operations

func (d *Database) SaveDocumentation(roomID, repositoryURL, generatedDocs string) (*Documentation, error) {
	result, err := d.db.Exec(
		"INSERT INTO documentation (room_id, repository_url, generated_docs) VALUES (?, ?, ?)",
		roomID, repositoryURL, generatedDocs,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	row := d.db.QueryRow(
		"SELECT id, room_id, repository_url, generated_docs, created_at FROM documentation WHERE id = ?",
		id,
	)
	var doc Documentation
	if err := row.Scan(&doc.ID, &doc.RoomID, &doc.RepositoryURL, &doc.GeneratedDocs, &doc.CreatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Database) ListDocumentation(limit, offset int) ([]Documentation, error) {
	rows, err := d.db.Query(
		"SELECT id, room_id, repository_url, generated_docs, created_at FROM documentation ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Documentation
	for rows.Next() {
		var doc Documentation
		if err := rows.Scan(&doc.ID, &doc.RoomID, &doc.RepositoryURL, &doc.GeneratedDocs, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetLatestDocumentation returns the most recent archive entry for a room,
// or nil when the room was never archived.
func (d *Database) GetLatestDocumentation(roomID string) (*Documentation, error) {
	row := d.db.QueryRow(
		"SELECT id, room_id, repository_url, generated_docs, created_at FROM documentation WHERE room_id = ? ORDER BY created_at DESC, id DESC LIMIT 1",
		roomID,
	)

	var doc Documentation
	err := row.Scan(&doc.ID, &doc.RoomID, &doc.RepositoryURL, &doc.GeneratedDocs, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	counts := map[string]string{
		"snippet_count":       "SELECT COUNT(*) FROM snippets",
		"env_variable_count":  "SELECT COUNT(*) FROM env_variables",
		"documentation_count": "SELECT COUNT(*) FROM documentation",
	}
	for key, query := range counts {
		var n int
		if err := d.db.QueryRow(query).Scan(&n); err != nil {
			return nil, err
		}
		stats[key] = n
	}

	return stats, nil
}
