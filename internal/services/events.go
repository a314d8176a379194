package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/timex"
)

// EventIndex is the event table with its time-range queries.
type EventIndex interface {
	Index[models.EventStub]
	ListStartingBefore(ctx context.Context, threshold int64) ([]models.EventStub, error)
	ListWithReminders(ctx context.Context) ([]models.EventStub, error)
	DeletePast(ctx context.Context, threshold int64) ([]string, error)
}

// Events manages calendar events. Events live only in the index.
type Events struct {
	*EventManager
	table EventIndex
}

func NewEvents(table EventIndex, m *EventManager) *Events {
	return &Events{EventManager: m, table: table}
}

// Upcoming returns unarchived, unfinished events starting before horizon,
// plus later events with a reminder that triggers before horizon.
// A zero horizon means no limit.
func (e *Events) Upcoming(ctx context.Context, horizon time.Time) ([]models.Stub, error) {
	stubs, err := e.table.ListStartingBefore(ctx, timex.ToEpoch(horizon))
	if err != nil {
		return nil, err
	}
	if !horizon.IsZero() {
		reminding, err := e.table.ListWithReminders(ctx)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(stubs))
		for _, s := range stubs {
			seen[s.UUID] = true
		}
		for _, s := range reminding {
			if !seen[s.UUID] && remindsBy(s, horizon) {
				stubs = append(stubs, s)
			}
		}
	}
	stubs, _ = sorted(stubs, nil)

	out := make([]models.Stub, 0, len(stubs))
	for _, s := range stubs {
		if !s.Completed {
			out = append(out, s)
		}
	}
	return out, nil
}

func remindsBy(s models.EventStub, horizon time.Time) bool {
	for _, r := range s.ReminderList() {
		if at, ok := r.Trigger(s.When()); ok && !at.After(horizon) {
			return true
		}
	}
	return false
}

// Purge deletes every event that ended before cutoff and returns how many
// were removed.
func (e *Events) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := e.table.DeletePast(ctx, timex.ToEpoch(cutoff))
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		e.log.Info(ctx, "past events purged", "count", len(ids), "cutoff", cutoff)
	}
	return len(ids), nil
}

// MarkDone flags an event as attended so reminders stop firing for it.
func (e *Events) MarkDone(ctx context.Context, id string) error {
	_, err := e.Update(ctx, id, func(ev *models.Event) error {
		if ev.Completed {
			return fmt.Errorf("event %s: %w", id, common.ErrAlreadyCompleted)
		}
		ev.Completed = true
		return nil
	})
	return err
}

// CreateLinked adds an event of length d ending at the task's due time.
func (e *Events) CreateLinked(ctx context.Context, t *models.Task, d time.Duration) (*models.Event, error) {
	ev := models.NewLinkedEvent(t, d)
	if ev == nil {
		return nil, fmt.Errorf("%w: task %s has no due date", common.ErrInvalidInput, t.ID)
	}
	return e.Create(ctx, ev)
}
