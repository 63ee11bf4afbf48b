package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/circle97/remind/internal/store"
)

var (
	// ErrUnknownPriority is returned for a priority outside the tier table.
	// Callers can distinguish "misconfigured priority" from "no reminders
	// needed" instead of silently getting an empty plan.
	ErrUnknownPriority = errors.New("unknown priority")
	// ErrEventTerminal is returned when reminders are requested for a
	// completed or cancelled event.
	ErrEventTerminal = errors.New("event is completed or cancelled")
)

// Tier is one row of a priority's reminder schedule.
type Tier struct {
	Level          int
	AdvanceMinutes int
	Channel        string
	Template       string
}

// Escalation templates by tier level. {title} and {start} are substituted at
// materialization time.
var tierTemplates = []string{
	"Reminder: {title} is coming up on {start}.",
	"Heads up: {title} starts at {start}.",
	"Starting soon: {title} at {start} — get ready.",
	"NOW: {title} begins at {start}!",
}

// tierTable is the static reminder policy, keyed by priority. Higher
// priorities get more tiers, closer to the event start.
var tierTable = map[string][]Tier{
	store.PriorityLow: {
		{1, 1440, store.ChannelPush, tierTemplates[0]},
	},
	store.PriorityMedium: {
		{1, 1440, store.ChannelPush, tierTemplates[0]},
		{2, 60, store.ChannelPush, tierTemplates[1]},
	},
	store.PriorityHigh: {
		{1, 1440, store.ChannelPush, tierTemplates[0]},
		{2, 120, store.ChannelPush, tierTemplates[1]},
		{3, 30, store.ChannelSMS, tierTemplates[2]},
	},
	store.PriorityUrgent: {
		{1, 1440, store.ChannelPush, tierTemplates[0]},
		{2, 120, store.ChannelPush, tierTemplates[1]},
		{3, 30, store.ChannelSMS, tierTemplates[2]},
		{4, 5, store.ChannelIM, tierTemplates[3]},
	},
}

// PlanTiers returns the ordered reminder schedule for a priority.
func PlanTiers(priority string) ([]Tier, error) {
	tiers, ok := tierTable[priority]
	if !ok {
		return nil, ErrUnknownPriority
	}
	return tiers, nil
}

// Materialize builds the reminder records for an event, one per tier of its
// priority, in tier order. Reminders whose fire time is already past are
// still created as pending — the delivery processor fires them on its next
// pass rather than skipping them. Nothing is persisted here.
func Materialize(ev *store.Event) ([]store.Reminder, error) {
	if ev.Terminal() {
		return nil, ErrEventTerminal
	}
	tiers, err := PlanTiers(ev.Priority)
	if err != nil {
		return nil, err
	}

	reminders := make([]store.Reminder, 0, len(tiers))
	for _, tier := range tiers {
		reminders = append(reminders, store.Reminder{
			EventID:        ev.ID,
			Channel:        tier.Channel,
			FireTime:       ev.StartTime.Add(-time.Duration(tier.AdvanceMinutes) * time.Minute),
			AdvanceMinutes: tier.AdvanceMinutes,
			Content:        renderTemplate(tier.Template, ev),
			State:          store.ReminderPending,
			MaxAttempts:    3,
		})
	}
	return reminders, nil
}

func renderTemplate(tpl string, ev *store.Event) string {
	start := ev.StartTime.Format("2006-01-02 15:04")
	if ev.AllDay {
		start = ev.StartTime.Format("2006-01-02")
	}
	return strings.NewReplacer(
		"{title}", ev.Title,
		"{start}", start,
	).Replace(tpl)
}
