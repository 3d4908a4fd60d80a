package handlers

import (
	"net/http"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	engine *retrieval.Engine
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, engine *retrieval.Engine) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		engine: engine,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Methods    []retrieval.MethodSpec `json:"methods"`
	CorpusSize int                    `json:"corpus_size"`
	PageSize   int                    `json:"page_size"`
	Backend    string                 `json:"backend"`
	Ready      bool                   `json:"ready"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Methods:    h.engine.Methods(),
		CorpusSize: h.config.Corpus.Size,
		PageSize:   h.config.Retrieval.PageSize,
		Backend:    database.BackendName(),
	}

	// The indexed corpus wins over the configured size once loaded
	if snap := h.engine.Snapshot(); snap != nil {
		response.CorpusSize = snap.Features.Len()
		response.Ready = true
	}

	respondJSON(w, http.StatusOK, response)
}
