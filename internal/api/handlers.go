package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/store"
	"github.com/safething/safething-go/pkg/thing"
	"github.com/safething/safething-go/pkg/version"
)

// Server holds the handlers for one local Thing.
type Server struct {
	thing  *thing.Thing
	logger *slog.Logger
}

// NewServer creates the handlers. A nil logger uses slog.Default().
func NewServer(t *thing.Thing, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{thing: t, logger: logger}
}

type envelope struct {
	OK    bool `json:"ok"`
	Data  any  `json:"data"`
	Error any  `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: status >= 200 && status < 300, Data: data})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: apiError{Code: code, Message: message}})
}

// writeThingErr maps Thing and store errors onto HTTP statuses.
func (s *Server) writeThingErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, thing.ErrInvalidArgument):
		writeErr(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, thing.ErrClosed):
		writeErr(w, http.StatusServiceUnavailable, "closed", err.Error())
	case errors.Is(err, store.ErrNetwork), errors.Is(err, store.ErrConnection):
		writeErr(w, http.StatusBadGateway, "network", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeErr(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// Health reports liveness and the build.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"format":  version.Format,
	})
}

type statusResponse struct {
	ThingID       string `json:"thing_id"`
	Status        string `json:"status"`
	Subscriptions int    `json:"subscriptions"`
}

// Status reports the local Thing's stored status.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	st, err := s.thing.Status(r.Context())
	if err != nil {
		s.writeThingErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		ThingID:       s.thing.ID(),
		Status:        st.String(),
		Subscriptions: s.thing.Subscriptions().Len(),
	})
}

// Subscriptions lists the local Thing's subscriptions by target.
func (s *Server) Subscriptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.thing.Subscriptions())
}

type thingResponse struct {
	ThingID    string            `json:"thing_id"`
	Status     string            `json:"status"`
	Attributes []model.ThingAttr `json:"attributes"`
	Topics     []model.Topic     `json:"topics"`
	Actions    []model.ActionDef `json:"actions"`
}

// GetThing reads a remote Thing's record.
func (s *Server) GetThing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := thing.ValidateID(id); err != nil {
		s.writeThingErr(w, err)
		return
	}

	st, err := s.thing.GetRemoteStatus(ctx, id)
	if err != nil {
		s.writeThingErr(w, err)
		return
	}
	resp := thingResponse{ThingID: id, Status: st.String()}
	if resp.Attributes, err = s.thing.GetRemoteAttrs(ctx, id); err != nil {
		s.writeThingErr(w, err)
		return
	}
	if resp.Topics, err = s.thing.GetRemoteTopics(ctx, id); err != nil {
		s.writeThingErr(w, err)
		return
	}
	if resp.Actions, err = s.thing.GetRemoteActions(ctx, id); err != nil {
		s.writeThingErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEvents reads the event list of a remote Thing's topic.
func (s *Server) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := thing.ValidateID(id); err != nil {
		s.writeThingErr(w, err)
		return
	}
	events, err := s.thing.GetRemoteEvents(r.Context(), id, chi.URLParam(r, "topic"))
	if err != nil {
		s.writeThingErr(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

type setAttrRequest struct {
	Value string `json:"value"`
}

// SetAttr sets a local attribute value.
func (s *Server) SetAttr(w http.ResponseWriter, r *http.Request) {
	var req setAttrRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.thing.SetAttrValue(r.Context(), name, req.Value); err != nil {
		s.writeThingErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": req.Value})
}

type notifyRequest struct {
	Payload string `json:"payload"`
}

// Notify appends an event to a local topic.
func (s *Server) Notify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	topic := chi.URLParam(r, "name")
	if err := s.thing.Notify(r.Context(), topic, req.Payload); err != nil {
		s.writeThingErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"topic": topic})
}

type actionRequest struct {
	Args []string `json:"args"`
}

type actionResponse struct {
	RequestID string `json:"request_id"`
}

// RequestAction sends an action request to a remote Thing. State changes
// are logged; the response carries the request id only.
func (s *Server) RequestAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}
	target := chi.URLParam(r, "id")
	name := chi.URLParam(r, "action")
	logger := s.logger.With("target", target, "action", name)

	id, err := s.thing.ActionRequest(r.Context(), target, name, req.Args,
		action.StateHandlerFunc(func(id model.RequestID, state string) bool {
			logger.Info("action request state", "request_id", id, "state", state)
			return true
		}))
	if err != nil {
		s.writeThingErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, actionResponse{RequestID: id.String()})
}
