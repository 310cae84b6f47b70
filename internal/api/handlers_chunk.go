package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FadeevMax/test-web-sop/internal/chunker"
	"github.com/FadeevMax/test-web-sop/internal/document"
)

type chunkRequest struct {
	Elements []document.Element `json:"elements"`
	Config   *chunkOverrides    `json:"config,omitempty"`
}

type chunkOverrides struct {
	TargetChunkSize int    `json:"target_chunk_size"`
	MaxChunkSize    int    `json:"max_chunk_size"`
	OverlapSize     int    `json:"overlap_size"`
	MinChunkSize    int    `json:"min_chunk_size"`
	ImageDir        string `json:"image_dir"`
}

// apply overlays the non-zero overrides on base.
func (o *chunkOverrides) apply(base chunker.Config) chunker.Config {
	if o == nil {
		return base
	}
	if o.TargetChunkSize > 0 {
		base.TargetChunkSize = o.TargetChunkSize
	}
	if o.MaxChunkSize > 0 {
		base.MaxChunkSize = o.MaxChunkSize
	}
	if o.OverlapSize > 0 {
		base.OverlapSize = o.OverlapSize
	}
	if o.MinChunkSize > 0 {
		base.MinChunkSize = o.MinChunkSize
	}
	if o.ImageDir != "" {
		base.ImageDir = o.ImageDir
	}
	return base
}

// handleChunk builds chunks synchronously from a posted element stream.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cfg := req.Config.apply(s.cfg.Chunker())
	if err := cfg.Validate(); err != nil {
		jsonError(w, "invalid config: "+err.Error(), http.StatusBadRequest)
		return
	}

	chunks, err := chunker.New(cfg, s.tagger, s.log).Build(req.Elements)
	if err != nil {
		var verr *chunker.ValidationError
		if errors.As(err, &verr) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": verr.Error(),
				"index": verr.Index,
			})
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	images := 0
	for _, c := range chunks {
		images += len(c.Images)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"chunks":      chunks,
		"chunk_count": len(chunks),
		"image_count": images,
	})
}
