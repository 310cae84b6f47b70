package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handlePublishStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sinks":       s.orchestrator.SinkNames(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.orchestrator.Stats().All(),
	})
}
