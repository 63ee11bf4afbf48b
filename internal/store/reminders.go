package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification channels, opaque to the engine.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelIM    = "im"
)

// Reminder states. "sending" is the claim state: a reminder is moved
// pending→sending atomically before the notification channel is invoked, so
// overlapping delivery passes cannot double-send. Sent and cancelled are
// terminal; failed may return to pending via RetryReminder while attempts
// remain.
const (
	ReminderPending   = "pending"
	ReminderSending   = "sending"
	ReminderSent      = "sent"
	ReminderFailed    = "failed"
	ReminderCancelled = "cancelled"
)

// Reminder is one scheduled notification for an event tier.
type Reminder struct {
	ID             string
	EventID        string
	Channel        string
	FireTime       time.Time
	AdvanceMinutes int
	Content        string
	State          string
	AttemptCount   int
	MaxAttempts    int
	FailureReason  string
	SentTime       *time.Time
	Position       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DueReminder is a due pending reminder joined with the owning event's
// recipient, as selected by a delivery pass.
type DueReminder struct {
	Reminder
	OwnerID string
}

// CreateReminders inserts a batch of reminders for one event in tier order.
// Missing IDs are generated; state defaults to pending.
func (db *DB) CreateReminders(reminders []Reminder) error {
	if len(reminders) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin create reminders: %w", err)
	}

	now := time.Now().UTC()
	for i := range reminders {
		r := &reminders[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.State == "" {
			r.State = ReminderPending
		}
		if r.MaxAttempts == 0 {
			r.MaxAttempts = 3
		}
		r.Position = i
		r.CreatedAt = now
		r.UpdatedAt = now

		_, err := tx.Exec(`
			INSERT INTO reminders (id, event_id, channel, fire_time, advance_minutes,
				content, state, attempt_count, max_attempts, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.EventID, r.Channel, millis(r.FireTime), r.AdvanceMinutes,
			r.Content, r.State, r.AttemptCount, r.MaxAttempts, r.Position,
			millis(now), millis(now))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert reminder %d for %s: %w", i, r.EventID, err)
		}
	}

	return tx.Commit()
}

// GetReminder returns a reminder by ID, or nil if not found.
func (db *DB) GetReminder(id string) (*Reminder, error) {
	row := db.QueryRow(reminderSelect+" WHERE id = ?", id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// EventReminders returns an event's reminders in tier order.
func (db *DB) EventReminders(eventID string) ([]Reminder, error) {
	rows, err := db.Query(reminderSelect+" WHERE event_id = ? ORDER BY position", eventID)
	if err != nil {
		return nil, fmt.Errorf("event reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListReminders returns reminders, optionally filtered by state, newest fire
// time last.
func (db *DB) ListReminders(state string) ([]Reminder, error) {
	query := reminderSelect
	var args []any
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, state)
	}
	query += " ORDER BY fire_time"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// DueReminders returns pending reminders with fire_time <= now, joined with
// the owning event for the recipient. Reminders of terminal events are never
// due — closing an event cancels them.
func (db *DB) DueReminders(now time.Time) ([]DueReminder, error) {
	rows, err := db.Query(`
		SELECT r.id, r.event_id, r.channel, r.fire_time, r.advance_minutes,
			r.content, r.state, r.attempt_count, r.max_attempts,
			r.failure_reason, r.sent_time, r.position, r.created_at, r.updated_at,
			e.owner_id
		FROM reminders r
		JOIN events e ON e.id = r.event_id
		WHERE r.state = 'pending' AND r.fire_time <= ?
		ORDER BY r.fire_time
	`, millis(now))
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()

	var due []DueReminder
	for rows.Next() {
		var d DueReminder
		var failure sql.NullString
		var fire, createdAt, updatedAt int64
		var sentTime sql.NullInt64
		if err := rows.Scan(&d.ID, &d.EventID, &d.Channel, &fire, &d.AdvanceMinutes,
			&d.Content, &d.State, &d.AttemptCount, &d.MaxAttempts,
			&failure, &sentTime, &d.Position, &createdAt, &updatedAt,
			&d.OwnerID); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		d.FireTime = fromMillis(fire)
		d.FailureReason = failure.String
		d.CreatedAt = fromMillis(createdAt)
		d.UpdatedAt = fromMillis(updatedAt)
		if sentTime.Valid {
			t := fromMillis(sentTime.Int64)
			d.SentTime = &t
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// ClaimReminder atomically moves a reminder pending→sending. Returns false if
// the reminder was not pending (already claimed, resolved, or cancelled).
func (db *DB) ClaimReminder(id string, now time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE reminders SET state = 'sending', updated_at = ?
		WHERE id = ? AND state = 'pending'
	`, millis(now), id)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// MarkSent resolves a claimed reminder to sent. Returns false if the reminder
// was no longer in the sending state — a concurrent cancel wins.
func (db *DB) MarkSent(id string, now time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE reminders SET state = 'sent', sent_time = ?, failure_reason = NULL, updated_at = ?
		WHERE id = ? AND state = 'sending'
	`, millis(now), millis(now), id)
	if err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// MarkFailed resolves a claimed reminder to failed, recording the reason and
// counting the attempt. Returns false if the reminder was no longer sending.
func (db *DB) MarkFailed(id, reason string, now time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE reminders SET state = 'failed', failure_reason = ?,
			attempt_count = attempt_count + 1, updated_at = ?
		WHERE id = ? AND state = 'sending'
	`, reason, millis(now), id)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// RetryReminder moves a failed reminder back to pending while attempts
// remain. A reminder at its attempt limit, or in any other state, is left
// untouched and false is returned.
func (db *DB) RetryReminder(id string, now time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE reminders SET state = 'pending', failure_reason = NULL, updated_at = ?
		WHERE id = ? AND state = 'failed' AND attempt_count < max_attempts
	`, millis(now), id)
	if err != nil {
		return false, fmt.Errorf("retry reminder: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// CancelReminder cancels a reminder that has not yet been sent. Cancelling an
// in-flight (sending) reminder is allowed: the resolve step re-checks state,
// so the cancel sticks even if delivery was underway. Returns false if the
// reminder was already sent or cancelled.
func (db *DB) CancelReminder(id string, now time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE reminders SET state = 'cancelled', updated_at = ?
		WHERE id = ? AND state IN ('pending', 'sending', 'failed')
	`, millis(now), id)
	if err != nil {
		return false, fmt.Errorf("cancel reminder: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// CancelEventReminders cancels all open reminders of an event. Used when the
// event reaches a terminal status. Returns the number cancelled.
func (db *DB) CancelEventReminders(eventID string) (int, error) {
	now := time.Now().UTC()
	result, err := db.Exec(`
		UPDATE reminders SET state = 'cancelled', updated_at = ?
		WHERE event_id = ? AND state IN ('pending', 'sending', 'failed')
	`, millis(now), eventID)
	if err != nil {
		return 0, fmt.Errorf("cancel event reminders: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ReminderStats is the read-only aggregate projection over reminder state.
type ReminderStats struct {
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	DueToday  int `json:"due_today"`
	DueWeek   int `json:"due_week"`
}

// Stats computes reminder counts by state plus due-today / due-this-week
// counts of not-yet-sent reminders, relative to now. An in-flight sending
// reminder counts as pending.
func (db *DB) Stats(now time.Time) (*ReminderStats, error) {
	var s ReminderStats

	rows, err := db.Query(`SELECT state, COUNT(*) FROM reminders GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("stats by state: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch state {
		case ReminderPending, ReminderSending:
			s.Pending += count
		case ReminderSent:
			s.Sent = count
		case ReminderFailed:
			s.Failed = count
		case ReminderCancelled:
			s.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	today := dayStart(now.UTC())
	tomorrow := today.AddDate(0, 0, 1)
	weekEnd := today.AddDate(0, 0, 7)

	err = db.QueryRow(`
		SELECT COUNT(*) FROM reminders
		WHERE state IN ('pending', 'sending', 'failed') AND fire_time >= ? AND fire_time < ?
	`, millis(today), millis(tomorrow)).Scan(&s.DueToday)
	if err != nil {
		return nil, fmt.Errorf("stats due today: %w", err)
	}

	err = db.QueryRow(`
		SELECT COUNT(*) FROM reminders
		WHERE state IN ('pending', 'sending', 'failed') AND fire_time >= ? AND fire_time < ?
	`, millis(today), millis(weekEnd)).Scan(&s.DueWeek)
	if err != nil {
		return nil, fmt.Errorf("stats due week: %w", err)
	}

	return &s, nil
}

const reminderSelect = `
	SELECT id, event_id, channel, fire_time, advance_minutes, content, state,
		attempt_count, max_attempts, failure_reason, sent_time, position,
		created_at, updated_at
	FROM reminders`

func scanReminder(row rowScanner) (*Reminder, error) {
	var r Reminder
	var failure sql.NullString
	var fire, createdAt, updatedAt int64
	var sentTime sql.NullInt64

	err := row.Scan(&r.ID, &r.EventID, &r.Channel, &fire, &r.AdvanceMinutes,
		&r.Content, &r.State, &r.AttemptCount, &r.MaxAttempts,
		&failure, &sentTime, &r.Position, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.FireTime = fromMillis(fire)
	r.FailureReason = failure.String
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	if sentTime.Valid {
		t := fromMillis(sentTime.Int64)
		r.SentTime = &t
	}
	return &r, nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var reminders []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}
