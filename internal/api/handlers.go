// Package api is the synchronous HTTP surface around the coordinator:
// health, stats, and the snippet/env/documentation CRUD stores.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rishabh-28-shubham/TechStroke/internal/db"
	"github.com/rishabh-28-shubham/TechStroke/internal/ws"
)

type API struct {
	hub      *ws.Hub
	database *db.Database
	log      *slog.Logger
}

func New(hub *ws.Hub, database *db.Database, log *slog.Logger) *API {
	return &API{
		hub:      hub,
		database: database,
		log:      log,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response failed", "err", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			for k, v := range dbStats {
				stats[k] = v
			}
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Snippet handlers

type SnippetRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Code        string   `json:"code"`
	Tags        []string `json:"tags,omitempty"`
}

// SnippetsRouter serves /api/snippets and /api/snippets/{id}.
func (a *API) SnippetsRouter(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/snippets")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			a.listSnippets(w, r)
		case http.MethodPost:
			a.createSnippet(w, r)
		default:
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	id, err := strconv.Atoi(rest)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid snippet ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getSnippet(w, r, id)
	case http.MethodPut:
		a.updateSnippet(w, r, id)
	case http.MethodDelete:
		a.deleteSnippet(w, r, id)
	default:
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *API) listSnippets(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	snippets, err := a.database.ListSnippets(limit, offset)
	if err != nil {
		a.log.Error("list snippets failed", "err", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to list snippets")
		return
	}
	if snippets == nil {
		snippets = []db.Snippet{}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"snippets": snippets,
		"limit":    limit,
		"offset":   offset,
	})
}

func (a *API) createSnippet(w http.ResponseWriter, r *http.Request) {
	var req SnippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.Code == "" {
		errorResponse(w, http.StatusBadRequest, "Title and code are required")
		return
	}

	snippet, err := a.database.CreateSnippet(req.Title, req.Description, req.Code, req.Tags)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to create snippet")
		return
	}

	jsonResponse(w, http.StatusCreated, snippet)
}

func (a *API) getSnippet(w http.ResponseWriter, r *http.Request, id int) {
	snippet, err := a.database.GetSnippet(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get snippet")
		return
	}
	if snippet == nil {
		errorResponse(w, http.StatusNotFound, "Snippet not found")
		return
	}
	jsonResponse(w, http.StatusOK, snippet)
}

func (a *API) updateSnippet(w http.ResponseWriter, r *http.Request, id int) {
	existing, err := a.database.GetSnippet(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get snippet")
		return
	}
	if existing == nil {
		errorResponse(w, http.StatusNotFound, "Snippet not found")
		return
	}

	var req SnippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.Code == "" {
		errorResponse(w, http.StatusBadRequest, "Title and code are required")
		return
	}

	snippet, err := a.database.UpdateSnippet(id, req.Title, req.Description, req.Code, req.Tags)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to update snippet")
		return
	}
	jsonResponse(w, http.StatusOK, snippet)
}

func (a *API) deleteSnippet(w http.ResponseWriter, r *http.Request, id int) {
	if err := a.database.DeleteSnippet(id); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete snippet")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Environment variable handlers

type EnvVariableRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EnvRouter serves /api/env and /api/env/{id}.
func (a *API) EnvRouter(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/env")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			a.listEnvVariables(w, r)
		case http.MethodPost:
			a.createEnvVariable(w, r)
		default:
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	id, err := strconv.Atoi(rest)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid variable ID")
		return
	}

	switch r.Method {
	case http.MethodPut:
		a.updateEnvVariable(w, r, id)
	case http.MethodDelete:
		a.deleteEnvVariable(w, r, id)
	default:
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *API) listEnvVariables(w http.ResponseWriter, r *http.Request) {
	vars, err := a.database.ListEnvVariables()
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list variables")
		return
	}
	if vars == nil {
		vars = []db.EnvVariable{}
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"variables": vars})
}

func (a *API) createEnvVariable(w http.ResponseWriter, r *http.Request) {
	var req EnvVariableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Value == "" {
		errorResponse(w, http.StatusBadRequest, "Name and value are required")
		return
	}

	variable, err := a.database.CreateEnvVariable(req.Name, req.Value)
	if err != nil {
		errorResponse(w, http.StatusConflict, "Failed to create variable")
		return
	}
	jsonResponse(w, http.StatusCreated, variable)
}

func (a *API) updateEnvVariable(w http.ResponseWriter, r *http.Request, id int) {
	existing, err := a.database.GetEnvVariable(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get variable")
		return
	}
	if existing == nil {
		errorResponse(w, http.StatusNotFound, "Variable not found")
		return
	}

	var req EnvVariableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Value == "" {
		errorResponse(w, http.StatusBadRequest, "Name and value are required")
		return
	}

	variable, err := a.database.UpdateEnvVariable(id, req.Name, req.Value)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to update variable")
		return
	}
	jsonResponse(w, http.StatusOK, variable)
}

func (a *API) deleteEnvVariable(w http.ResponseWriter, r *http.Request, id int) {
	if err := a.database.DeleteEnvVariable(id); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete variable")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Documentation handlers

type DocumentationRequest struct {
	RoomID        string `json:"room_id,omitempty"`
	RepositoryURL string `json:"repository_url,omitempty"`
	GeneratedDocs string `json:"generated_docs"`
}

// DocsRouter serves /api/documentation and /api/documentation/{roomId}/latest.
func (a *API) DocsRouter(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/documentation")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			a.listDocumentation(w, r)
		case http.MethodPost:
			a.saveDocumentation(w, r)
		default:
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[1] == "latest" && r.Method == http.MethodGet {
		a.latestDocumentation(w, r, parts[0])
		return
	}

	errorResponse(w, http.StatusNotFound, "Not found")
}

func (a *API) listDocumentation(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	docs, err := a.database.ListDocumentation(limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list documentation")
		return
	}
	if docs == nil {
		docs = []db.Documentation{}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"documentation": docs,
		"limit":         limit,
		"offset":        offset,
	})
}

func (a *API) saveDocumentation(w http.ResponseWriter, r *http.Request) {
	var req DocumentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GeneratedDocs == "" {
		errorResponse(w, http.StatusBadRequest, "Generated docs are required")
		return
	}

	doc, err := a.database.SaveDocumentation(req.RoomID, req.RepositoryURL, req.GeneratedDocs)
	if err != nil {
		a.log.Error("save documentation failed", "err", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to save documentation")
		return
	}
	jsonResponse(w, http.StatusCreated, doc)
}

func (a *API) latestDocumentation(w http.ResponseWriter, r *http.Request, roomID string) {
	doc, err := a.database.GetLatestDocumentation(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get documentation")
		return
	}
	if doc == nil {
		errorResponse(w, http.StatusNotFound, "No documentation archived for room")
		return
	}
	jsonResponse(w, http.StatusOK, doc)
}
