package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/tailor/internal/domain/model"
)

type genderRequest struct {
	Gender string `json:"gender" validate:"required,oneof=male female unknown"`
}

func identityParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "identity"))
}

// handleGetProfile handles GET /profiles/{identity} requests.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	v, err := s.deps.Profile(r.Context(), identityParam(r))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleResetProfile handles DELETE /profiles/{identity} requests.
func (s *Server) handleResetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset_profile"
	if err := s.deps.ResetProfile(r.Context(), identityParam(r)); err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetGender handles PUT /profiles/{identity}/gender requests.
func (s *Server) handleSetGender(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_gender"
	var req genderRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	req.Gender = strings.ToLower(strings.TrimSpace(req.Gender))
	if err := s.validate.Struct(&req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, explain(err)))
		return
	}
	v, err := s.deps.SetGender(r.Context(), identityParam(r), model.ParseGender(req.Gender))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
