// Package status serves the machine-readable artifact listing consumed
// by gallery frontends. It only ever reads the capture directory; the
// capture loop is never touched and never waits on a request.
package status

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

type Handler struct {
	node    string
	saveDir string
}

// NewHandler creates a listing handler for one node's capture directory.
func NewHandler(node, saveDir string) *Handler {
	return &Handler{node: node, saveDir: saveDir}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)
	case r.URL.Path == "/images.json" && r.Method == http.MethodGet:
		h.listImages(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ListResponse represents the /images.json endpoint response.
type ListResponse struct {
	Node   string   `json:"node"`
	Images []string `json:"images"`
}

func (h *Handler) listImages(w http.ResponseWriter, r *http.Request) {
	images, err := listArtifacts(h.saveDir)
	if err != nil {
		log.Printf("status: list error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list captures")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Node: h.node, Images: images})
}

// listArtifacts returns capture basenames, newest first.
func listArtifacts(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, err
	}

	type entry struct {
		name    string
		modTime int64
	}
	entries := make([]entry, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			// Sweeper or a shell may remove files mid-listing.
			continue
		}
		entries = append(entries, entry{name: filepath.Base(path), modTime: info.ModTime().UnixNano()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime > entries[j].modTime })

	images := make([]string, len(entries))
	for i, e := range entries {
		images[i] = e.name
	}
	return images, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("status: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
