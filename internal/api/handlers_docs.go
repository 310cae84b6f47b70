package api

import (
	"encoding/json"
	"net/http"
)

type documentEntry struct {
	DocID string `json:"doc_id"`
	Path  string `json:"path"`
}

// handleListDocuments lists the documents published to the content store:
// one directory per document under the configured path prefix.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		jsonError(w, "content store not configured", http.StatusServiceUnavailable)
		return
	}

	entries, err := s.docs.ListDir(r.Context(), s.cfg.GitHubPathPrefix)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusBadGateway)
		return
	}

	docs := []documentEntry{}
	for _, e := range entries {
		if e.Type == "dir" {
			docs = append(docs, documentEntry{DocID: e.Name, Path: e.Path})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}
