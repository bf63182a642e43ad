package httpapi

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"gatelog/internal/gatelog/service"
	"gatelog/internal/gatelog/types"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// formData feeds the visitor form template. Plate and Token come from the
// detection that opened the entry and ride the form round-trip explicitly.
type formData struct {
	Plate   string
	Token   string
	Message string
	Failed  bool
}

type dashboardData struct {
	Stats     types.Stats
	Entries   []types.Entry
	Generated string
}

func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "form.html", formData{
		Plate: types.NormalizePlate(r.URL.Query().Get("plate")),
		Token: r.URL.Query().Get("token"),
	})
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_form", "invalid form body")
		return
	}

	req := types.UpdateDetailsRequest{
		VehicleNo: r.PostFormValue("vehicle"),
		Name:      r.PostFormValue("name"),
		Phone:     r.PostFormValue("phone"),
		Purpose:   r.PostFormValue("purpose"),
	}

	data := formData{
		Plate: types.NormalizePlate(req.VehicleNo),
		Token: r.PostFormValue("token"),
	}

	_, err := s.visitors.Update(r.Context(), req)
	switch {
	case err == nil:
		data.Message = "Visitor logged successfully."
	case errors.Is(err, service.ErrNoOpenEntry):
		data.Failed = true
		data.Message = "No open entry for this vehicle — it may have already exited."
	case errors.Is(err, service.ErrInvalidVehicleNo):
		data.Failed = true
		data.Message = "Vehicle number is missing or not a valid plate."
	default:
		s.logger.Printf("form submit error: %v", err)
		data.Failed = true
		data.Message = "Could not save visitor details, please try again."
	}

	s.renderPage(w, "form.html", data)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reports.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, "dashboard", err)
		return
	}
	list, err := s.reports.List(r.Context())
	if err != nil {
		s.writeServiceError(w, "dashboard", err)
		return
	}

	s.renderPage(w, "dashboard.html", dashboardData{
		Stats:     stats.Statistics,
		Entries:   list.Vehicles,
		Generated: time.Now().UTC().Format(types.TimeLayout),
	})
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Printf("render %s: %v", name, err)
	}
}
