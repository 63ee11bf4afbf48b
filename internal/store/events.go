package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event categories.
const (
	CategoryBirthday    = "birthday"
	CategoryAnniversary = "anniversary"
	CategoryFestival    = "festival"
	CategoryAppointment = "appointment"
	CategoryMeeting     = "meeting"
	CategoryOther       = "other"
)

// Event priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Recurrence rules.
const (
	RecurNone    = "none"
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
	RecurYearly  = "yearly"
)

// Event lifecycle statuses. Completed and cancelled are terminal.
const (
	EventActive    = "active"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

// Event represents a calendar event. Times are stored as Unix milliseconds
// and surfaced as time.Time in UTC.
type Event struct {
	ID            string
	OwnerID       string
	Title         string
	Description   string
	Category      string
	Priority      string
	StartTime     time.Time
	EndTime       time.Time
	AllDay        bool
	Recurrence    string
	RecurrenceEnd *time.Time
	Location      string
	Tags          []string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the event's lifecycle has ended. No reminders may
// be generated for a terminal event.
func (e *Event) Terminal() bool {
	return e.Status == EventCompleted || e.Status == EventCancelled
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// dayStart truncates a time to midnight of its day.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// ValidateEvent checks the event invariants shared by create and update.
func ValidateEvent(ev *Event) error {
	if ev.OwnerID == "" {
		return fmt.Errorf("event owner required")
	}
	if ev.Title == "" {
		return fmt.Errorf("event title required")
	}
	if ev.EndTime.Before(ev.StartTime) {
		return fmt.Errorf("event end %s before start %s", ev.EndTime, ev.StartTime)
	}
	if ev.Recurrence != RecurNone {
		if ev.RecurrenceEnd == nil {
			return fmt.Errorf("recurrence %s requires a recurrence end", ev.Recurrence)
		}
		if ev.RecurrenceEnd.Before(ev.StartTime) {
			return fmt.Errorf("recurrence end %s before start %s", ev.RecurrenceEnd, ev.StartTime)
		}
	}
	return nil
}

// CreateEvent validates and inserts an event. A missing ID is generated, a
// missing status defaults to active, and all-day events are normalized to day
// boundaries (00:00 start, 00:00 of the following day end).
func (db *DB) CreateEvent(ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = EventActive
	}
	if ev.Recurrence == "" {
		ev.Recurrence = RecurNone
	}
	if ev.AllDay {
		ev.StartTime = dayStart(ev.StartTime)
		end := dayStart(ev.EndTime)
		if !end.After(ev.StartTime) {
			end = ev.StartTime.AddDate(0, 0, 1)
		}
		ev.EndTime = end
	}
	if err := ValidateEvent(ev); err != nil {
		return err
	}

	tags, err := encodeTags(ev.Tags)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var recurEnd any
	if ev.RecurrenceEnd != nil {
		recurEnd = millis(*ev.RecurrenceEnd)
	}

	_, err = db.Exec(`
		INSERT INTO events (id, owner_id, title, description, category, priority,
			start_time, end_time, all_day, recurrence, recurrence_end,
			location, tags, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.OwnerID, ev.Title, ev.Description, ev.Category, ev.Priority,
		millis(ev.StartTime), millis(ev.EndTime), boolInt(ev.AllDay),
		ev.Recurrence, recurEnd, ev.Location, tags, ev.Status,
		millis(now), millis(now))
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	ev.CreatedAt = now
	ev.UpdatedAt = now
	return nil
}

// GetEvent returns an event by ID, or nil if not found.
func (db *DB) GetEvent(id string) (*Event, error) {
	row := db.QueryRow(eventSelect+" WHERE id = ?", id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// ListEvents returns events, optionally filtered by owner, ordered by start time.
func (db *DB) ListEvents(ownerID string) ([]Event, error) {
	query := eventSelect
	var args []any
	if ownerID != "" {
		query += " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY start_time"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// CompleteEvent marks an active event completed and cancels its open
// reminders. Completing a non-active event is an error.
func (db *DB) CompleteEvent(id string) error {
	return db.closeEvent(id, EventCompleted)
}

// CancelEvent marks an active event cancelled and cancels its open reminders.
func (db *DB) CancelEvent(id string) error {
	return db.closeEvent(id, EventCancelled)
}

func (db *DB) closeEvent(id, status string) error {
	now := time.Now().UTC()
	result, err := db.Exec(`
		UPDATE events SET status = ?, updated_at = ?
		WHERE id = ? AND status = 'active'
	`, status, millis(now), id)
	if err != nil {
		return fmt.Errorf("close event: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no active event found for %s", id)
	}
	if _, err := db.CancelEventReminders(id); err != nil {
		return fmt.Errorf("cancel reminders for %s: %w", id, err)
	}
	return nil
}

// DeleteEvent removes an event; its reminders cascade.
func (db *DB) DeleteEvent(id string) error {
	result, err := db.Exec("DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no event found for %s", id)
	}
	return nil
}

const eventSelect = `
	SELECT id, owner_id, title, description, category, priority,
		start_time, end_time, all_day, recurrence, recurrence_end,
		location, tags, status, created_at, updated_at
	FROM events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var ev Event
	var description, location, tags sql.NullString
	var start, end, createdAt, updatedAt int64
	var allDay int
	var recurEnd sql.NullInt64

	err := row.Scan(&ev.ID, &ev.OwnerID, &ev.Title, &description, &ev.Category,
		&ev.Priority, &start, &end, &allDay, &ev.Recurrence, &recurEnd,
		&location, &tags, &ev.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	ev.Description = description.String
	ev.Location = location.String
	ev.Tags = decodeTags(tags.String)
	ev.StartTime = fromMillis(start)
	ev.EndTime = fromMillis(end)
	ev.AllDay = allDay != 0
	ev.CreatedAt = fromMillis(createdAt)
	ev.UpdatedAt = fromMillis(updatedAt)
	if recurEnd.Valid {
		t := fromMillis(recurEnd.Int64)
		ev.RecurrenceEnd = &t
	}
	return &ev, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
