package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tailor/internal/domain/model"
)

// eventRequest is the body of POST /events.
type eventRequest struct {
	EventID     string   `json:"event_id" validate:"omitempty,max=128"`
	Identity    string   `json:"identity" validate:"required,max=256"`
	Type        string   `json:"type" validate:"required,event_type"`
	Handle      string   `json:"handle" validate:"omitempty,max=256"`
	Vendor      string   `json:"vendor" validate:"omitempty,max=256"`
	ProductType string   `json:"product_type" validate:"omitempty,max=256"`
	Title       string   `json:"title" validate:"omitempty,max=512"`
	Tags        []string `json:"tags" validate:"max=64,dive,max=128"`
	TS          string   `json:"ts" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (e *eventRequest) event() model.Event {
	id := strings.TrimSpace(e.EventID)
	if id == "" {
		id = uuid.NewString()
	}
	var at time.Time
	if e.TS != "" {
		at, _ = time.Parse(time.RFC3339, e.TS)
	}
	return model.Event{
		ID:          id,
		Identity:    strings.TrimSpace(e.Identity),
		Type:        model.EventType(e.Type),
		Handle:      e.Handle,
		Vendor:      e.Vendor,
		ProductType: e.ProductType,
		Title:       e.Title,
		Tags:        e.Tags,
		At:          at,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// handlePostEvent handles POST /events requests.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, explain(err)))
		return
	}

	e := req.event()
	duplicate, err := s.deps.SubmitEvent(r.Context(), e)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", EventID: e.ID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: e.ID})
}
