package retrieval

import (
	"fmt"
	"sort"
)

// State is the phase of an interaction session.
type State string

const (
	StateNoResults      State = "no_results"
	StateRankedUniform  State = "ranked_uniform"
	StateRankedFeedback State = "ranked_feedback"
)

// Session is the state of one interactive retrieval: the selected query and
// method, the current ranking and the images marked relevant. A session is
// not safe for concurrent use; callers serialize access.
type Session struct {
	queryID  int
	method   Method
	state    State
	relevant map[int]struct{}
	results  []Result
	weights  Weights
	round    int
}

// NewSession returns a session with no query selected.
func NewSession() *Session {
	return &Session{state: StateNoResults, relevant: make(map[int]struct{})}
}

func (s *Session) QueryID() int     { return s.queryID }
func (s *Session) Method() Method   { return s.method }
func (s *Session) State() State     { return s.state }
func (s *Session) Round() int       { return s.round }
func (s *Session) Weights() Weights { return s.weights }

// Results returns the current ranking.
func (s *Session) Results() []Result {
	return append([]Result(nil), s.results...)
}

// SelectQuery changes the query image. A different query discards the
// ranking and the relevant set.
func (s *Session) SelectQuery(id int) {
	if id != s.queryID {
		s.queryID = id
		s.Reset()
	}
}

// SelectMethod changes the retrieval method. A different method discards
// the ranking and the relevant set.
func (s *Session) SelectMethod(m Method) {
	if m != s.method {
		s.method = m
		s.Reset()
	}
}

// Reset returns to NoResults keeping the selected query and method.
func (s *Session) Reset() {
	s.state = StateNoResults
	s.relevant = make(map[int]struct{})
	s.results = nil
	s.weights = Weights{}
	s.round = 0
}

// Run ranks the corpus against the selected query with the uniform weight.
// The relevant set is kept, so marks made before a re-run survive it.
func (s *Session) Run(e *Engine) error {
	if s.queryID == 0 || s.method == "" {
		return ErrNoQuery
	}
	results, _, err := e.Rank(s.method, s.queryID)
	if err != nil {
		return err
	}
	space, err := e.Space(s.method)
	if err != nil {
		return err
	}
	s.results = results
	s.weights = Uniform(space.Dim())
	s.state = StateRankedUniform
	return nil
}

// Mark adds or removes an image from the relevant set.
func (s *Session) Mark(id int, relevant bool) {
	if relevant {
		s.relevant[id] = struct{}{}
		return
	}
	delete(s.relevant, id)
}

// IsRelevant reports whether an image is marked relevant.
func (s *Session) IsRelevant(id int) bool {
	_, ok := s.relevant[id]
	return ok
}

// Relevant returns the relevant set in ascending order.
func (s *Session) Relevant() []int {
	ids := make([]int, 0, len(s.relevant))
	for id := range s.relevant {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SubmitFeedback merges ids into the relevant set and re-ranks. With an
// empty relevant set the uniform ranking is produced instead.
func (s *Session) SubmitFeedback(e *Engine, ids ...int) error {
	if s.state == StateNoResults {
		return ErrNoResults
	}
	spec, err := e.Method(s.method)
	if err != nil {
		return err
	}
	if !spec.Feedback {
		return fmt.Errorf("%w: %s", ErrFeedbackUnsupported, s.method)
	}
	space, err := e.Space(s.method)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !space.Has(id) {
			return fmt.Errorf("%w: %d", ErrUnknownImage, id)
		}
	}
	for _, id := range ids {
		s.relevant[id] = struct{}{}
	}

	if len(s.relevant) == 0 {
		return s.Run(e)
	}

	results, w, err := e.Feedback(s.method, s.queryID, s.Relevant())
	if err != nil {
		return err
	}
	s.results = results
	s.weights = w
	s.state = StateRankedFeedback
	s.round++
	return nil
}

// Page is one page of a ranking.
type Page struct {
	Number     int      `json:"page"`
	TotalPages int      `json:"total_pages"`
	Size       int      `json:"page_size"`
	Total      int      `json:"total"`
	Results    []Result `json:"results"`
}

// Page returns page n (1-based) of the current ranking.
func (s *Session) Page(n, size int) Page {
	return Paginate(s.results, n, size)
}

// Paginate splits results into pages of the given size. The page number is
// clamped to the valid range.
func Paginate(results []Result, n, size int) Page {
	if size <= 0 {
		size = 1
	}
	total := (len(results) + size - 1) / size
	if n > total {
		n = total
	}
	if n < 1 {
		n = 1
	}

	p := Page{Number: n, TotalPages: total, Size: size, Total: len(results), Results: []Result{}}
	start := (n - 1) * size
	if start >= len(results) {
		return p
	}
	end := min(start+size, len(results))
	p.Results = append(p.Results, results[start:end]...)
	return p
}

// SessionState is the persistable part of a session. Rankings are derived
// data and are recomputed on restore.
type SessionState struct {
	QueryID  int    `json:"query_id"`
	Method   Method `json:"method"`
	State    State  `json:"state"`
	Relevant []int  `json:"relevant"`
	Round    int    `json:"round"`
}

// Export returns the persistable state of the session.
func (s *Session) Export() SessionState {
	return SessionState{
		QueryID:  s.queryID,
		Method:   s.method,
		State:    s.state,
		Relevant: s.Relevant(),
		Round:    s.round,
	}
}

// RestoreSession rebuilds a session from its persisted state by replaying
// the ranking against the engine. Feedback weights depend only on the
// relevant set, so the restored ranking equals the one that was saved.
func RestoreSession(st SessionState, e *Engine) (*Session, error) {
	s := NewSession()
	s.queryID = st.QueryID
	s.method = st.Method
	if st.State == StateNoResults || st.State == "" {
		return s, nil
	}

	if err := s.Run(e); err != nil {
		return nil, err
	}
	for _, id := range st.Relevant {
		s.relevant[id] = struct{}{}
	}
	if st.State != StateRankedFeedback {
		return s, nil
	}

	if err := s.SubmitFeedback(e); err != nil {
		return nil, err
	}
	s.round = st.Round
	return s, nil
}
