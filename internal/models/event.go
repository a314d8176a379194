package models

import "time"

// Event is a calendar entry. Its index row is the whole record; events have
// no content file.
type Event struct {
	Base
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	LinkedID  string    `json:"linked_id,omitempty"`
	Completed bool      `json:"completed"`
}

func NewEvent(name string, start, end time.Time, tags ...string) *Event {
	e := &Event{StartTime: start, EndTime: end}
	e.Name = name
	e.SetTags(tags...)
	return e
}

// NewLinkedEvent builds an event spanning duration d that ends at the task's
// due time and points back at the task. It returns nil for tasks without a
// due date.
func NewLinkedEvent(t *Task, d time.Duration) *Event {
	if t.DueBy.IsZero() {
		return nil
	}
	e := NewEvent(t.Name, t.DueBy.Add(-d), t.DueBy, t.Tags...)
	e.LinkedID = t.ID
	e.Reminders = append([]Reminder(nil), t.Reminders...)
	return e
}

func (e *Event) Stub() EventStub {
	return EventStub{
		UUID:       e.ID,
		Name:       e.Name,
		Tags:       JSONList[string](NormalizeTags(e.Tags)),
		Reminders:  JSONList[Reminder](e.Reminders),
		Archived:   e.Archived,
		StartTime:  epoch(e.StartTime),
		EndTime:    epoch(e.EndTime),
		LinkedUUID: e.LinkedID,
		Completed:  e.Completed,
	}
}

// EventFromStub rebuilds an event from its index row.
func EventFromStub(s EventStub) *Event {
	e := &Event{
		StartTime: fromEpoch(s.StartTime),
		EndTime:   fromEpoch(s.EndTime),
		LinkedID:  s.LinkedUUID,
		Completed: s.Completed,
	}
	e.ID = s.UUID
	e.Name = s.Name
	e.Tags = []string(s.Tags)
	e.Reminders = []Reminder(s.Reminders)
	e.Archived = s.Archived
	return e
}
