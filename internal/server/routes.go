package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/circle97/remind/internal/engine"
	"github.com/circle97/remind/internal/store"
	"github.com/go-chi/chi/v5"
)

type eventJSON struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Category      string     `json:"category"`
	Priority      string     `json:"priority"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	AllDay        bool       `json:"all_day"`
	Recurrence    string     `json:"recurrence"`
	RecurrenceEnd *time.Time `json:"recurrence_end,omitempty"`
	Location      string     `json:"location,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Status        string     `json:"status"`
}

func toEventJSON(ev *store.Event) eventJSON {
	return eventJSON{
		ID:            ev.ID,
		OwnerID:       ev.OwnerID,
		Title:         ev.Title,
		Description:   ev.Description,
		Category:      ev.Category,
		Priority:      ev.Priority,
		StartTime:     ev.StartTime,
		EndTime:       ev.EndTime,
		AllDay:        ev.AllDay,
		Recurrence:    ev.Recurrence,
		RecurrenceEnd: ev.RecurrenceEnd,
		Location:      ev.Location,
		Tags:          ev.Tags,
		Status:        ev.Status,
	}
}

type reminderJSON struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	Channel        string     `json:"channel"`
	FireTime       time.Time  `json:"fire_time"`
	AdvanceMinutes int        `json:"advance_minutes"`
	Content        string     `json:"content"`
	State          string     `json:"state"`
	AttemptCount   int        `json:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	SentTime       *time.Time `json:"sent_time,omitempty"`
}

func toReminderJSON(r *store.Reminder) reminderJSON {
	return reminderJSON{
		ID:             r.ID,
		EventID:        r.EventID,
		Channel:        r.Channel,
		FireTime:       r.FireTime,
		AdvanceMinutes: r.AdvanceMinutes,
		Content:        r.Content,
		State:          r.State,
		AttemptCount:   r.AttemptCount,
		MaxAttempts:    r.MaxAttempts,
		FailureReason:  r.FailureReason,
		SentTime:       r.SentTime,
	}
}

func toReminderList(reminders []store.Reminder) []reminderJSON {
	out := make([]reminderJSON, len(reminders))
	for i := range reminders {
		out[i] = toReminderJSON(&reminders[i])
	}
	return out
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"owner_id"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text required"}`, http.StatusBadRequest)
		return
	}

	candidates := engine.Recognize(req.Text, req.OwnerID, time.Now())

	type candidateJSON struct {
		Event   eventJSON `json:"event"`
		Keyword string    `json:"keyword"`
	}
	out := make([]candidateJSON, len(candidates))
	for i, c := range candidates {
		out[i] = candidateJSON{Event: toEventJSON(&c.Event), Keyword: c.Keyword}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":      len(out),
		"candidates": out,
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	ev := store.Event{
		OwnerID:       req.OwnerID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Priority:      req.Priority,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		AllDay:        req.AllDay,
		Recurrence:    req.Recurrence,
		RecurrenceEnd: req.RecurrenceEnd,
		Location:      req.Location,
		Tags:          req.Tags,
	}
	if ev.Category == "" {
		ev.Category = store.CategoryOther
	}
	if ev.Priority == "" {
		ev.Priority = store.PriorityMedium
	}

	if err := s.db.CreateEvent(&ev); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEventJSON(&ev))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.db.ListEvents(r.URL.Query().Get("owner"))
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	out := make([]eventJSON, len(events))
	for i := range events {
		out[i] = toEventJSON(&events[i])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":  len(out),
		"events": out,
	})
}

// getEvent loads an event, writing a 404/500 response and returning nil when
// the handler should bail out.
func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) *store.Event {
	id := chi.URLParam(r, "eventID")
	ev, err := s.db.GetEvent(id)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return nil
	}
	if ev == nil {
		http.Error(w, `{"error":"event not found"}`, http.StatusNotFound)
		return nil
	}
	return ev
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev := s.getEvent(w, r)
	if ev == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEventJSON(ev))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ev := s.getEvent(w, r)
	if ev == nil {
		return
	}
	if err := s.db.DeleteEvent(ev.ID); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

func (s *Server) handleCompleteEvent(w http.ResponseWriter, r *http.Request) {
	s.closeEvent(w, r, store.EventCompleted)
}

func (s *Server) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	s.closeEvent(w, r, store.EventCancelled)
}

func (s *Server) closeEvent(w http.ResponseWriter, r *http.Request, status string) {
	ev := s.getEvent(w, r)
	if ev == nil {
		return
	}

	var err error
	if status == store.EventCompleted {
		err = s.db.CompleteEvent(ev.ID)
	} else {
		err = s.db.CancelEvent(ev.ID)
	}
	if err != nil {
		// Already terminal — not a server error.
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	ev := s.getEvent(w, r)
	if ev == nil {
		return
	}

	untilParam := r.URL.Query().Get("until")
	if untilParam == "" {
		http.Error(w, `{"error":"until parameter required"}`, http.StatusBadRequest)
		return
	}
	until, err := time.Parse(time.RFC3339, untilParam)
	if err != nil {
		http.Error(w, `{"error":"until must be RFC3339"}`, http.StatusBadRequest)
		return
	}

	occurrences, err := engine.Expand(ev, until)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrNotRecurring) || errors.Is(err, engine.ErrInvalidHorizon) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"event_id":    ev.ID,
		"count":       len(occurrences),
		"occurrences": occurrences,
	})
}

func (s *Server) handlePlanReminders(w http.ResponseWriter, r *http.Request) {
	ev := s.getEvent(w, r)
	if ev == nil {
		return
	}

	reminders, err := s.engine.PlanReminders(ev.ID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, engine.ErrEventTerminal):
			status = http.StatusConflict
		case errors.Is(err, engine.ErrUnknownPriority):
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"count":     len(reminders),
		"reminders": toReminderList(reminders),
	})
}

func (s *Server) handleEventReminders(w http.ResponseWriter, r *http.Request) {
	ev := s.getEvent(w, r)
	if ev == nil {
		return
	}

	reminders, err := s.db.EventReminders(ev.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":     len(reminders),
		"reminders": toReminderList(reminders),
	})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.db.ListReminders(r.URL.Query().Get("state"))
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":     len(reminders),
		"reminders": toReminderList(reminders),
	})
}

// getReminder mirrors getEvent for reminder routes.
func (s *Server) getReminder(w http.ResponseWriter, r *http.Request) *store.Reminder {
	id := chi.URLParam(r, "reminderID")
	rem, err := s.db.GetReminder(id)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return nil
	}
	if rem == nil {
		http.Error(w, `{"error":"reminder not found"}`, http.StatusNotFound)
		return nil
	}
	return rem
}

func (s *Server) handleRetryReminder(w http.ResponseWriter, r *http.Request) {
	rem := s.getReminder(w, r)
	if rem == nil {
		return
	}

	changed, err := s.db.RetryReminder(rem.ID, time.Now())
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	// Retry on a reminder out of attempts (or not failed) is a no-op, not an
	// error — report the resulting state either way.
	updated, err := s.db.GetReminder(rem.ID)
	if err != nil || updated == nil {
		http.Error(w, `{"error":"reminder not found"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"retried":  changed,
		"reminder": toReminderJSON(updated),
	})
}

func (s *Server) handleCancelReminder(w http.ResponseWriter, r *http.Request) {
	rem := s.getReminder(w, r)
	if rem == nil {
		return
	}

	changed, err := s.db.CancelReminder(rem.ID, time.Now())
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	if !changed {
		http.Error(w, `{"error":"reminder already sent or cancelled"}`, http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if r.Body != nil {
		var req struct {
			Now *time.Time `json:"now"`
		}
		// Empty body is fine; a malformed body is not.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
		if req.Now != nil {
			now = *req.Now
		}
	}

	report, err := s.engine.ProcessDue(r.Context(), now)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(time.Now())
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
