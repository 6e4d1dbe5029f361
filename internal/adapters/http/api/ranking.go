package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/retrieval"
)

// IdentityHeader carries the visitor identity when the query does not.
const IdentityHeader = "X-Visitor-Identity"

type pageResponse struct {
	Items     []model.Candidate `json:"items"`
	Cursor    *string           `json:"cursor"`
	ColdStart bool              `json:"coldStart"`
	Failed    []string          `json:"failedSources,omitempty"`
	Debug     []model.ScoreRow  `json:"debug,omitempty"`
}

func page(items []model.Candidate, cursor string, cold bool, failed []string, debug []model.ScoreRow) pageResponse {
	resp := pageResponse{Items: items, ColdStart: cold, Failed: failed, Debug: debug}
	if resp.Items == nil {
		resp.Items = []model.Candidate{}
	}
	if cursor != "" {
		resp.Cursor = &cursor
	}
	return resp
}

type pageParams struct {
	identity string
	cursor   string
	limit    int
	debug    bool
}

func parsePageParams(r *http.Request) (pageParams, error) {
	q := r.URL.Query()
	p := pageParams{
		identity: strings.TrimSpace(q.Get("identity")),
		cursor:   q.Get("cursor"),
	}
	if p.identity == "" {
		p.identity = strings.TrimSpace(r.Header.Get(IdentityHeader))
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, NewKind("limit must be a positive integer", ErrBadRequest)
		}
		p.limit = n
	}
	switch strings.ToLower(q.Get("debug")) {
	case "1", "true", "yes":
		p.debug = true
	}
	return p, nil
}

// handleFeed handles GET /feed requests.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	const op = "api.feed"
	p, err := parsePageParams(r)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	res, err := s.deps.Feed(r.Context(), feedRequest(p))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, page(res.Items, res.Cursor, res.ColdStart, res.Failed, res.Debug))
}

// handleReel handles GET /reel/{handle} requests.
func (s *Server) handleReel(w http.ResponseWriter, r *http.Request) {
	const op = "api.reel"
	handle := strings.TrimSpace(chi.URLParam(r, "handle"))
	if handle == "" {
		s.fail(w, r, op, NewKind("missing handle", ErrBadRequest))
		return
	}
	p, err := parsePageParams(r)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	res, err := s.deps.Reel(r.Context(), reelRequest(p, handle))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, page(res.Items, res.Cursor, res.ColdStart, res.Failed, res.Debug))
}

func feedRequest(p pageParams) retrieval.FeedRequest {
	return retrieval.FeedRequest{Identity: p.identity, Cursor: p.cursor, Limit: p.limit, Debug: p.debug}
}

func reelRequest(p pageParams, handle string) retrieval.ReelRequest {
	return retrieval.ReelRequest{Identity: p.identity, Handle: handle, Cursor: p.cursor, Limit: p.limit, Debug: p.debug}
}
