package store

import (
	"fmt"
	"testing"
	"time"
)

// seedReminders inserts n pending reminders for an event, fire times one
// minute apart starting at the given base (or now minus an hour).
func seedReminders(t *testing.T, db *DB, eventID string, n int) []Reminder {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	reminders := make([]Reminder, n)
	for i := range reminders {
		reminders[i] = Reminder{
			EventID:        eventID,
			Channel:        ChannelPush,
			FireTime:       base.Add(time.Duration(i) * time.Minute),
			AdvanceMinutes: 60 - i,
			Content:        fmt.Sprintf("reminder %d", i),
		}
	}
	if err := db.CreateReminders(reminders); err != nil {
		t.Fatalf("CreateReminders: %v", err)
	}
	return reminders
}

func seedEventWithReminders(t *testing.T, db *DB, n int) (*Event, []Reminder) {
	t.Helper()
	ev := validEvent()
	if err := db.CreateEvent(ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return ev, seedReminders(t, db, ev.ID, n)
}

func TestCreateRemindersDefaults(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 3)

	for i, r := range reminders {
		if r.ID == "" {
			t.Errorf("reminder %d missing generated ID", i)
		}
		if r.State != ReminderPending {
			t.Errorf("reminder %d state = %q, want pending", i, r.State)
		}
		if r.MaxAttempts != 3 {
			t.Errorf("reminder %d max attempts = %d, want 3", i, r.MaxAttempts)
		}
		if r.Position != i {
			t.Errorf("reminder %d position = %d, want %d", i, r.Position, i)
		}
	}

	stored, err := db.EventReminders(reminders[0].EventID)
	if err != nil {
		t.Fatalf("EventReminders: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("stored %d reminders, want 3", len(stored))
	}
}

func TestDueReminders(t *testing.T) {
	db := testDB(t)
	ev := validEvent()
	if err := db.CreateEvent(ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	now := time.Now().UTC()
	reminders := []Reminder{
		{EventID: ev.ID, Channel: ChannelPush, FireTime: now.Add(-time.Hour), AdvanceMinutes: 60, Content: "past"},
		{EventID: ev.ID, Channel: ChannelPush, FireTime: now.Add(time.Hour), AdvanceMinutes: 1, Content: "future"},
	}
	if err := db.CreateReminders(reminders); err != nil {
		t.Fatalf("CreateReminders: %v", err)
	}

	due, err := db.DueReminders(now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due, want 1", len(due))
	}
	if due[0].Content != "past" {
		t.Errorf("due content = %q, want past", due[0].Content)
	}
	if due[0].OwnerID != ev.OwnerID {
		t.Errorf("owner = %q, want %q (joined from event)", due[0].OwnerID, ev.OwnerID)
	}
}

func TestClaimReminderExclusive(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 1)
	id := reminders[0].ID
	now := time.Now().UTC()

	claimed, err := db.ClaimReminder(id, now)
	if err != nil {
		t.Fatalf("ClaimReminder: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	again, err := db.ClaimReminder(id, now)
	if err != nil {
		t.Fatalf("second ClaimReminder: %v", err)
	}
	if again {
		t.Error("second claim must fail — reminder is already in flight")
	}

	r, _ := db.GetReminder(id)
	if r.State != ReminderSending {
		t.Errorf("state = %q, want sending", r.State)
	}
}

func TestClaimedReminderNotDue(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 1)
	now := time.Now().UTC()

	if _, err := db.ClaimReminder(reminders[0].ID, now); err != nil {
		t.Fatalf("ClaimReminder: %v", err)
	}

	due, err := db.DueReminders(now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("got %d due, want 0 (claimed reminders are not pending)", len(due))
	}
}

func TestMarkSentOnlyFromSending(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 1)
	id := reminders[0].ID
	now := time.Now().UTC()

	// Not claimed yet — MarkSent must refuse.
	ok, err := db.MarkSent(id, now)
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if ok {
		t.Error("MarkSent on a pending reminder must fail")
	}

	db.ClaimReminder(id, now)
	ok, err = db.MarkSent(id, now)
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if !ok {
		t.Fatal("MarkSent on a claimed reminder should succeed")
	}

	r, _ := db.GetReminder(id)
	if r.State != ReminderSent {
		t.Errorf("state = %q, want sent", r.State)
	}
	if r.SentTime == nil {
		t.Error("sent reminder must record sent time")
	}

	// Sent is terminal.
	if ok, _ := db.ClaimReminder(id, now); ok {
		t.Error("claim on a sent reminder must fail")
	}
	if ok, _ := db.CancelReminder(id, now); ok {
		t.Error("cancel on a sent reminder must fail")
	}
}

func TestMarkFailedCountsAttempt(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 1)
	id := reminders[0].ID
	now := time.Now().UTC()

	db.ClaimReminder(id, now)
	ok, err := db.MarkFailed(id, "gateway timeout", now)
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if !ok {
		t.Fatal("MarkFailed on a claimed reminder should succeed")
	}

	r, _ := db.GetReminder(id)
	if r.State != ReminderFailed {
		t.Errorf("state = %q, want failed", r.State)
	}
	if r.FailureReason != "gateway timeout" {
		t.Errorf("reason = %q, want gateway timeout", r.FailureReason)
	}
	if r.AttemptCount != 1 {
		t.Errorf("attempts = %d, want 1", r.AttemptCount)
	}
}

func TestRetryReminder(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 1)
	id := reminders[0].ID
	now := time.Now().UTC()

	// Retry on pending is a no-op.
	if ok, _ := db.RetryReminder(id, now); ok {
		t.Error("retry on a pending reminder must be a no-op")
	}

	db.ClaimReminder(id, now)
	db.MarkFailed(id, "boom", now)

	ok, err := db.RetryReminder(id, now)
	if err != nil {
		t.Fatalf("RetryReminder: %v", err)
	}
	if !ok {
		t.Fatal("retry with attempts remaining should succeed")
	}

	r, _ := db.GetReminder(id)
	if r.State != ReminderPending {
		t.Errorf("state = %q, want pending", r.State)
	}
	if r.FailureReason != "" {
		t.Errorf("reason = %q, want cleared", r.FailureReason)
	}
	if r.AttemptCount != 1 {
		t.Errorf("attempts = %d, want 1 (retry keeps the count)", r.AttemptCount)
	}
}

func TestRetryExhaustedIsNoop(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 1)
	id := reminders[0].ID
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		db.ClaimReminder(id, now)
		db.MarkFailed(id, "boom", now)
		if i < 2 {
			db.RetryReminder(id, now)
		}
	}

	r, _ := db.GetReminder(id)
	if r.AttemptCount != 3 {
		t.Fatalf("attempts = %d, want 3", r.AttemptCount)
	}

	ok, err := db.RetryReminder(id, now)
	if err != nil {
		t.Fatalf("RetryReminder: %v", err)
	}
	if ok {
		t.Error("retry at max attempts must be a no-op")
	}

	r, _ = db.GetReminder(id)
	if r.State != ReminderFailed {
		t.Errorf("state = %q, want failed (unchanged)", r.State)
	}
}

func TestCancelReminderStates(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 3)
	now := time.Now().UTC()

	// Pending → cancelled.
	if ok, _ := db.CancelReminder(reminders[0].ID, now); !ok {
		t.Error("cancel on pending should succeed")
	}

	// Sending → cancelled (cancel during delivery).
	db.ClaimReminder(reminders[1].ID, now)
	if ok, _ := db.CancelReminder(reminders[1].ID, now); !ok {
		t.Error("cancel on sending should succeed")
	}

	// Failed → cancelled.
	db.ClaimReminder(reminders[2].ID, now)
	db.MarkFailed(reminders[2].ID, "boom", now)
	if ok, _ := db.CancelReminder(reminders[2].ID, now); !ok {
		t.Error("cancel on failed should succeed")
	}

	for _, r := range reminders {
		got, _ := db.GetReminder(r.ID)
		if got.State != ReminderCancelled {
			t.Errorf("reminder %s state = %q, want cancelled", r.ID, got.State)
		}
		// Cancelled reminders are never selected again.
		if ok, _ := db.ClaimReminder(r.ID, now); ok {
			t.Errorf("reminder %s claimable after cancel", r.ID)
		}
	}

	due, _ := db.DueReminders(now)
	if len(due) != 0 {
		t.Errorf("got %d due after cancelling all, want 0", len(due))
	}
}

func TestCancelEventReminders(t *testing.T) {
	db := testDB(t)
	ev, reminders := seedEventWithReminders(t, db, 3)
	now := time.Now().UTC()

	// One already sent — it must stay sent.
	db.ClaimReminder(reminders[0].ID, now)
	db.MarkSent(reminders[0].ID, now)

	n, err := db.CancelEventReminders(ev.ID)
	if err != nil {
		t.Fatalf("CancelEventReminders: %v", err)
	}
	if n != 2 {
		t.Errorf("cancelled %d, want 2", n)
	}

	sent, _ := db.GetReminder(reminders[0].ID)
	if sent.State != ReminderSent {
		t.Errorf("sent reminder state = %q, want sent (untouched)", sent.State)
	}
}

func TestListRemindersByState(t *testing.T) {
	db := testDB(t)
	_, reminders := seedEventWithReminders(t, db, 2)
	now := time.Now().UTC()

	db.ClaimReminder(reminders[0].ID, now)
	db.MarkSent(reminders[0].ID, now)

	pending, err := db.ListReminders(ReminderPending)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d pending, want 1", len(pending))
	}

	all, err := db.ListReminders("")
	if err != nil {
		t.Fatalf("ListReminders all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d reminders, want 2", len(all))
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)
	ev := validEvent()
	if err := db.CreateEvent(ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	// Fixed midday reference so the day/week windows are unambiguous.
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	reminders := []Reminder{
		{EventID: ev.ID, Channel: ChannelPush, FireTime: now.Add(2 * time.Hour), AdvanceMinutes: 1, Content: "today"},
		{EventID: ev.ID, Channel: ChannelPush, FireTime: now.AddDate(0, 0, 3), AdvanceMinutes: 1, Content: "this week"},
		{EventID: ev.ID, Channel: ChannelPush, FireTime: now.AddDate(0, 0, 30), AdvanceMinutes: 1, Content: "next month"},
		{EventID: ev.ID, Channel: ChannelPush, FireTime: now.Add(-time.Hour), AdvanceMinutes: 1, Content: "done"},
	}
	if err := db.CreateReminders(reminders); err != nil {
		t.Fatalf("CreateReminders: %v", err)
	}

	db.ClaimReminder(reminders[3].ID, now)
	db.MarkSent(reminders[3].ID, now)

	stats, err := db.Stats(now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.Pending != 3 {
		t.Errorf("pending = %d, want 3", stats.Pending)
	}
	if stats.Sent != 1 {
		t.Errorf("sent = %d, want 1", stats.Sent)
	}
	if stats.DueWeek < stats.DueToday {
		t.Errorf("due week %d below due today %d", stats.DueWeek, stats.DueToday)
	}
	if stats.DueWeek != stats.DueToday+1 {
		t.Errorf("due week = %d, want due today + 1", stats.DueWeek)
	}
}
