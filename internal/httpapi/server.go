package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"gatelog/internal/gatelog/service"
	"gatelog/internal/gatelog/types"
)

type Dependencies struct {
	Logger   *log.Logger
	Addr     string
	Presence *service.PresenceService
	Visitors *service.VisitorService
	Reports  *service.ReportService

	// PublicBaseURL is the externally reachable base of this server, used
	// to build the visitor form link returned with "open" decisions.
	PublicBaseURL string
}

type Server struct {
	httpServer    *http.Server
	logger        *log.Logger
	mux           *http.ServeMux
	presence      *service.PresenceService
	visitors      *service.VisitorService
	reports       *service.ReportService
	publicBaseURL string
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:        d.Logger,
		mux:           mux,
		presence:      d.Presence,
		visitors:      d.Visitors,
		reports:       d.Reports,
		publicBaseURL: d.PublicBaseURL,
	}

	mux.HandleFunc("POST /v1/detections", s.handleDetection)
	mux.HandleFunc("POST /v1/entries", s.handleNewEntry)
	mux.HandleFunc("POST /v1/exits", s.handleUpdateExit)
	mux.HandleFunc("POST /v1/visitors", s.handleUpdateDetails)
	mux.HandleFunc("GET /v1/vehicles", s.handleListVehicles)
	mux.HandleFunc("GET /v1/vehicles/{vehicleNo}", s.handleVehicleByNumber)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/exports/entries.xlsx", s.handleExportXLSX)
	mux.HandleFunc("GET /v1/exports/entries.csv", s.handleExportCSV)
	mux.HandleFunc("GET /form", s.handleFormPage)
	mux.HandleFunc("POST /form", s.handleFormSubmit)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	var req types.DetectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.presence.Resolve(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "detection", err)
		return
	}

	if resp.Decision == types.DecisionOpen {
		resp.FormURL = s.formURL(resp.VehicleNo, resp.EventID)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNewEntry(w http.ResponseWriter, r *http.Request) {
	var req types.NewEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.presence.Open(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "new entry", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateExit(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateExitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.presence.Close(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "update exit", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateDetails(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateDetailsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.visitors.Update(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "update details", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.List(r.Context())
	if err != nil {
		s.writeServiceError(w, "list vehicles", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVehicleByNumber(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.ByVehicle(r.Context(), r.PathValue("vehicleNo"))
	if err != nil {
		s.writeServiceError(w, "vehicle lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// formURL builds the visitor form link for an open decision. The plate and
// the event id travel in the URL itself — correlation is request-scoped,
// there is no server-side "current plate".
func (s *Server) formURL(vehicleNo, eventID string) string {
	q := url.Values{}
	q.Set("plate", vehicleNo)
	q.Set("token", eventID)
	return s.publicBaseURL + "/form?" + q.Encode()
}

// writeServiceError maps service sentinel errors to HTTP error responses.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidVehicleNo):
		writeError(w, http.StatusBadRequest, "invalid_vehicle_no", err.Error())
	case errors.Is(err, service.ErrNoOpenEntry):
		writeError(w, http.StatusNotFound, "no_open_entry", err.Error())
	case errors.Is(err, service.ErrNoEntries):
		writeError(w, http.StatusNotFound, "no_entries", err.Error())
	default:
		s.logger.Printf("%s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}
