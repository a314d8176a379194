package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/toastit/internal/timex"
)

var (
	epoch     = timex.ToEpoch
	fromEpoch = timex.FromEpoch
)

// Stub is the indexed projection of an entry. Listing, scheduling and the
// calendar all work on stubs.
type Stub interface {
	Key() string
	Title() string
	EntryKind() Kind
	// When is the reference time: due date for tasks and projects, start
	// time for events, creation time for notes and journals.
	When() time.Time
	// Path is the content file location, empty for kinds without one.
	Path() string
	IsArchived() bool
	Done() bool
	TagList() []string
	ReminderList() []Reminder
}

// JSONList stores a slice in a single text column as a JSON array.
type JSONList[T any] []T

func (l JSONList[T]) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]T(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *JSONList[T]) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("cannot scan %T into JSONList", src)
	}
	var out []T
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
	}
	if len(out) == 0 {
		out = nil
	}
	*l = out
	return nil
}

type TaskStub struct {
	UUID        string             `db:"uuid"`
	Name        string             `db:"name"`
	Tags        JSONList[string]   `db:"tags"`
	Reminders   JSONList[Reminder] `db:"reminders"`
	Archived    bool               `db:"archived"`
	Started     bool               `db:"started"`
	Completed   bool               `db:"completed"`
	DueBy       int64              `db:"due_by"`
	StartedAt   int64              `db:"started_at"`
	CompletedAt int64              `db:"completed_at"`
	MetaPath    string             `db:"meta_path"`
}

func (s TaskStub) Key() string              { return s.UUID }
func (s TaskStub) Title() string            { return s.Name }
func (s TaskStub) EntryKind() Kind          { return KindTask }
func (s TaskStub) When() time.Time          { return fromEpoch(s.DueBy) }
func (s TaskStub) Path() string             { return s.MetaPath }
func (s TaskStub) IsArchived() bool         { return s.Archived }
func (s TaskStub) Done() bool               { return s.Completed }
func (s TaskStub) ReminderList() []Reminder { return s.Reminders }
func (s TaskStub) TagList() []string        { return s.Tags }

// Lifecycle rebuilds the progress state from the row so list views can show
// completion without loading content.
func (s TaskStub) Lifecycle() Lifecycle {
	return Lifecycle{
		Started:     s.Started,
		Completed:   s.Completed,
		DueBy:       fromEpoch(s.DueBy),
		StartedAt:   fromEpoch(s.StartedAt),
		CompletedAt: fromEpoch(s.CompletedAt),
	}
}

type ProjectStub struct {
	TaskStub
	ProjectPath string `db:"project_path"`
	OpenWith    string `db:"open_with"`
}

func (s ProjectStub) EntryKind() Kind { return KindProject }

type EventStub struct {
	UUID       string             `db:"uuid"`
	Name       string             `db:"name"`
	Tags       JSONList[string]   `db:"tags"`
	Reminders  JSONList[Reminder] `db:"reminders"`
	Archived   bool               `db:"archived"`
	StartTime  int64              `db:"start_time"`
	EndTime    int64              `db:"end_time"`
	LinkedUUID string             `db:"linked_uuid"`
	Completed  bool               `db:"completed"`
}

func (s EventStub) Key() string              { return s.UUID }
func (s EventStub) Title() string            { return s.Name }
func (s EventStub) EntryKind() Kind          { return KindEvent }
func (s EventStub) When() time.Time          { return fromEpoch(s.StartTime) }
func (s EventStub) Path() string             { return "" }
func (s EventStub) IsArchived() bool         { return s.Archived }
func (s EventStub) Done() bool               { return s.Completed }
func (s EventStub) ReminderList() []Reminder { return s.Reminders }
func (s EventStub) TagList() []string        { return s.Tags }

// TextStub indexes notes and journal entries.
type TextStub struct {
	UUID      string             `db:"uuid"`
	Name      string             `db:"name"`
	Tags      JSONList[string]   `db:"tags"`
	Reminders JSONList[Reminder] `db:"reminders"`
	Archived  bool               `db:"archived"`
	CreatedAt int64              `db:"created_at"`
	MetaPath  string             `db:"meta_path"`
}

func (s TextStub) Key() string              { return s.UUID }
func (s TextStub) Title() string            { return s.Name }
func (s TextStub) EntryKind() Kind          { return KindNote }
func (s TextStub) When() time.Time          { return fromEpoch(s.CreatedAt) }
func (s TextStub) Path() string             { return s.MetaPath }
func (s TextStub) IsArchived() bool         { return s.Archived }
func (s TextStub) Done() bool               { return false }
func (s TextStub) ReminderList() []Reminder { return s.Reminders }
func (s TextStub) TagList() []string        { return s.Tags }

// JournalStub is a TextStub stored in the journals table.
type JournalStub struct {
	TextStub
}

func (s JournalStub) EntryKind() Kind { return KindJournal }
