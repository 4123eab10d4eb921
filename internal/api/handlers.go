package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/export"
	"salonbook/internal/models"
	"salonbook/internal/service"
)

const maxBodyBytes = 1 << 20

func (s *HTTPServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Salon booking assistant is running..."))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.services.Ready != nil {
		if err := s.services.Ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sessionID := strings.TrimSpace(body.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get("X-Session-ID"))
	}

	resp, err := s.services.Chat.Handle(r.Context(), sessionID, body.Message)
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many messages, please slow down.")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appts, err := s.services.Booking.ListAppointments(r.Context(), models.AppointmentFilter{
		Date: strings.TrimSpace(q.Get("date")),
		Name: strings.TrimSpace(q.Get("name")),
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	at := strings.TrimSpace(r.URL.Query().Get("time"))
	if date == "" || at == "" {
		writeError(w, http.StatusBadRequest, "date and time required")
		return
	}

	available, err := s.services.Booking.SlotAvailable(r.Context(), date, at)
	if errors.Is(err, service.ErrInvalidSlot) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	slots, err := s.services.Booking.Suggest(r.Context(), date, strings.TrimSpace(r.URL.Query().Get("from")))
	if errors.Is(err, service.ErrInvalidSlot) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (s *HTTPServer) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.services.Booking.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": id})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	period := export.Period{
		From: strings.TrimSpace(r.URL.Query().Get("from")),
		To:   strings.TrimSpace(r.URL.Query().Get("to")),
	}
	for _, d := range []string{period.From, period.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}

	appts, err := s.services.Booking.ListAppointments(r.Context(), models.AppointmentFilter{DateFrom: period.From, DateTo: period.To})
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteAppointments(&buf, period, appts, s.services.Capacity); err != nil {
		s.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(period)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleListHours(w http.ResponseWriter, r *http.Request) {
	hours, err := s.services.Calendar.ListHours(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if hours == nil {
		hours = []models.WorkingHours{}
	}
	writeJSON(w, http.StatusOK, hours)
}

type hoursRequest struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

func (s *HTTPServer) handlePutHours(w http.ResponseWriter, r *http.Request) {
	dow, err := strconv.Atoi(r.PathValue("dow"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "day of week must be a number 0-6")
		return
	}
	var body hoursRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	h := models.WorkingHours{DayOfWeek: dow, Open: strings.TrimSpace(body.Open), Close: strings.TrimSpace(body.Close)}
	if err := s.services.Calendar.SetHours(r.Context(), h); err != nil {
		if errors.Is(err, service.ErrInvalidCalendar) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *HTTPServer) handleDeleteHours(w http.ResponseWriter, r *http.Request) {
	dow, err := strconv.Atoi(r.PathValue("dow"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "day of week must be a number 0-6")
		return
	}
	s.writeDeleted(w, r, s.services.Calendar.DeleteHours(r.Context(), dow), dow)
}

func (s *HTTPServer) handleListBlackouts(w http.ResponseWriter, r *http.Request) {
	blackouts, err := s.services.Calendar.ListBlackouts(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if blackouts == nil {
		blackouts = []models.Blackout{}
	}
	writeJSON(w, http.StatusOK, blackouts)
}

type blackoutRequest struct {
	Note string `json:"note"`
}

func (s *HTTPServer) handlePutBlackout(w http.ResponseWriter, r *http.Request) {
	var body blackoutRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b := models.Blackout{Date: r.PathValue("date"), Note: strings.TrimSpace(body.Note)}
	if err := s.services.Calendar.SetBlackout(r.Context(), b); err != nil {
		if errors.Is(err, service.ErrInvalidCalendar) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDeleteBlackout(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	s.writeDeleted(w, r, s.services.Calendar.DeleteBlackout(r.Context(), date), date)
}

func (s *HTTPServer) writeDeleted(w http.ResponseWriter, r *http.Request, err error, key any) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": key})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
