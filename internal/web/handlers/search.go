package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/kozaktomas/cbir/internal/web/middleware"
)

// SearchHandler drives the interactive retrieval session of the caller
type SearchHandler struct {
	config         *config.Config
	engine         *retrieval.Engine
	sessionManager *middleware.SessionManager
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(cfg *config.Config, engine *retrieval.Engine, sm *middleware.SessionManager) *SearchHandler {
	return &SearchHandler{
		config:         cfg,
		engine:         engine,
		sessionManager: sm,
	}
}

// SearchRequest represents a request to rank the corpus against a query image
type SearchRequest struct {
	QueryID int              `json:"query_id"`
	Method  retrieval.Method `json:"method"`
}

// FeedbackRequest represents a relevance feedback submission
type FeedbackRequest struct {
	RelevantIDs []int `json:"relevant_ids"`
}

// MarkRequest represents a relevant checkbox change
type MarkRequest struct {
	Relevant bool `json:"relevant"`
}

// ResultItem is one ranked image on a results page
type ResultItem struct {
	ImageID  int     `json:"image_id"`
	Distance float64 `json:"distance"`
	Relevant bool    `json:"relevant"`
}

// ResultsResponse represents one page of the session's current ranking
type ResultsResponse struct {
	QueryID    int              `json:"query_id"`
	Method     retrieval.Method `json:"method"`
	State      retrieval.State  `json:"state"`
	Round      int              `json:"round"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	PageSize   int              `json:"page_size"`
	Total      int              `json:"total"`
	Results    []ResultItem     `json:"results"`
	Relevant   []int            `json:"relevant"`
}

// pageSize returns the configured number of results per page
func (h *SearchHandler) pageSize() int {
	if h.config.Retrieval.PageSize > 0 {
		return h.config.Retrieval.PageSize
	}
	return constants.DefaultResultsPerPage
}

// buildResults renders page n of the session ranking. The caller holds the
// session lock.
func (h *SearchHandler) buildResults(rs *retrieval.Session, n int) ResultsResponse {
	page := rs.Page(n, h.pageSize())
	items := make([]ResultItem, len(page.Results))
	for i, res := range page.Results {
		items[i] = ResultItem{
			ImageID:  res.ImageID,
			Distance: res.Distance,
			Relevant: rs.IsRelevant(res.ImageID),
		}
	}
	return ResultsResponse{
		QueryID:    rs.QueryID(),
		Method:     rs.Method(),
		State:      rs.State(),
		Round:      rs.Round(),
		Page:       page.Number,
		TotalPages: page.TotalPages,
		PageSize:   page.Size,
		Total:      page.Total,
		Results:    items,
		Relevant:   rs.Relevant(),
	}
}

// Search selects the query image and method, then ranks with uniform weights
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.QueryID < 1 {
		respondError(w, http.StatusBadRequest, "query_id is required")
		return
	}
	if req.Method == "" {
		req.Method = retrieval.MethodFeedback
	}
	if _, err := h.engine.Method(req.Method); err != nil {
		respondRetrievalError(w, err)
		return
	}

	var response ResultsResponse
	err := session.Do(func(rs *retrieval.Session) error {
		rs.SelectQuery(req.QueryID)
		rs.SelectMethod(req.Method)
		if err := rs.Run(h.engine); err != nil {
			return err
		}
		response = h.buildResults(rs, 1)
		return nil
	})
	if err != nil {
		respondRetrievalError(w, err)
		return
	}

	h.sessionManager.Persist(r.Context(), session)
	respondJSON(w, http.StatusOK, response)
}

// Results returns a page of the current ranking with the relevant marks
func (h *SearchHandler) Results(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	n := 1
	if s := r.URL.Query().Get("page"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid page")
			return
		}
		n = parsed
	}

	var response ResultsResponse
	session.Do(func(rs *retrieval.Session) error {
		response = h.buildResults(rs, n)
		return nil
	})
	respondJSON(w, http.StatusOK, response)
}

// Mark sets or clears the relevant mark of an image
func (h *SearchHandler) Mark(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	id, ok := imageIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid image id")
		return
	}
	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	snap := h.engine.Snapshot()
	if snap == nil {
		respondRetrievalError(w, retrieval.ErrNotReady)
		return
	}
	if !snap.Features.Has(id) {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	var relevant []int
	session.Do(func(rs *retrieval.Session) error {
		rs.Mark(id, req.Relevant)
		relevant = rs.Relevant()
		return nil
	})

	h.sessionManager.Persist(r.Context(), session)
	respondJSON(w, http.StatusOK, map[string]any{
		"image_id":     id,
		"relevant":     req.Relevant,
		"relevant_ids": relevant,
	})
}

// Feedback merges the submitted ids into the relevant set and re-ranks
func (h *SearchHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var response ResultsResponse
	err := session.Do(func(rs *retrieval.Session) error {
		if err := rs.SubmitFeedback(h.engine, req.RelevantIDs...); err != nil {
			return err
		}
		response = h.buildResults(rs, 1)
		return nil
	})
	if err != nil {
		respondRetrievalError(w, err)
		return
	}

	h.sessionManager.Persist(r.Context(), session)
	respondJSON(w, http.StatusOK, response)
}

// Reset discards the ranking and the relevant marks
func (h *SearchHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var response ResultsResponse
	session.Do(func(rs *retrieval.Session) error {
		rs.Reset()
		response = h.buildResults(rs, 1)
		return nil
	})

	h.sessionManager.Persist(r.Context(), session)
	respondJSON(w, http.StatusOK, response)
}
