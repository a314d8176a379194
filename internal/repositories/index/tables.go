package index

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/dbx"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/jmoiron/sqlx"
)

var (
	taskColumns = []string{
		"uuid", "name", "tags", "reminders", "archived",
		"started", "completed", "due_by", "started_at", "completed_at", "meta_path",
	}
	projectColumns = append(append([]string{}, taskColumns...), "project_path", "open_with")
	eventColumns   = []string{
		"uuid", "name", "tags", "reminders", "archived",
		"start_time", "end_time", "linked_uuid", "completed",
	}
	textColumns = []string{
		"uuid", "name", "tags", "reminders", "archived", "created_at", "meta_path",
	}
)

const (
	activeTracked = "started = TRUE AND archived = FALSE"
	activeEvent   = "completed = FALSE AND archived = FALSE"
	activeText    = "archived = FALSE"
)

func NewTaskTable(db dbx.DBTX) *Table[models.TaskStub] {
	return NewTable[models.TaskStub](db, models.KindTask.Table(), taskColumns, activeTracked)
}

func NewProjectTable(db dbx.DBTX) *Table[models.ProjectStub] {
	return NewTable[models.ProjectStub](db, models.KindProject.Table(), projectColumns, activeTracked)
}

func NewNoteTable(db dbx.DBTX) *Table[models.TextStub] {
	return NewTable[models.TextStub](db, models.KindNote.Table(), textColumns, activeText)
}

func NewJournalTable(db dbx.DBTX) *Table[models.JournalStub] {
	return NewTable[models.JournalStub](db, models.KindJournal.Table(), textColumns, activeText)
}

// EventTable adds the time-range queries events need on top of Table.
type EventTable struct {
	*Table[models.EventStub]
	conn *sqlx.DB
}

func NewEventTable(db *sqlx.DB) *EventTable {
	return &EventTable{
		Table: NewTable[models.EventStub](db, models.KindEvent.Table(), eventColumns, activeEvent),
		conn:  db,
	}
}

// ListStartingBefore returns unarchived events starting before threshold
// (epoch seconds). A threshold <= 0 returns every unarchived event.
func (t *EventTable) ListStartingBefore(ctx context.Context, threshold int64) ([]models.EventStub, error) {
	if threshold <= 0 {
		return t.list(ctx, "archived = FALSE")
	}
	return t.list(ctx, "archived = FALSE AND start_time < ?", threshold)
}

// ListWithReminders returns unarchived events that carry at least one
// reminder, whatever their start time.
func (t *EventTable) ListWithReminders(ctx context.Context) ([]models.EventStub, error) {
	return t.list(ctx, "archived = FALSE AND reminders <> '[]'")
}

// DeletePast removes every event whose end_time is before threshold (epoch
// seconds), archived or not, and returns the removed ids.
func (t *EventTable) DeletePast(ctx context.Context, threshold int64) ([]string, error) {
	var ids []string
	err := dbx.WithTx(ctx, t.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		q := tx.Rebind(fmt.Sprintf("SELECT uuid FROM %s WHERE end_time < ? ORDER BY uuid", t.name))
		if err := sqlx.SelectContext(ctx, tx, &ids, q, threshold); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		q = tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE end_time < ?", t.name))
		_, err := tx.ExecContext(ctx, q, threshold)
		return err
	})
	if err != nil {
		return nil, common.StorageError("purge "+t.name, err)
	}
	return ids, nil
}
