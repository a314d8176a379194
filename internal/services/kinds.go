package services

import (
	"fmt"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/models"
)

type (
	TaskManager    = Manager[*models.Task, models.TaskStub]
	ProjectManager = Manager[*models.Project, models.ProjectStub]
	EventManager   = Manager[*models.Event, models.EventStub]
	NoteManager    = Manager[*models.TextEntry, models.TextStub]
	JournalManager = Manager[*models.TextEntry, models.JournalStub]
)

func TaskKind() Kind[*models.Task, models.TaskStub] {
	return Kind[*models.Task, models.TaskStub]{
		Kind:     models.KindTask,
		New:      func() *models.Task { return &models.Task{} },
		Stub:     (*models.Task).Stub,
		Validate: func(t *models.Task) error { return validateLifecycle(t.Lifecycle) },
	}
}

func ProjectKind() Kind[*models.Project, models.ProjectStub] {
	return Kind[*models.Project, models.ProjectStub]{
		Kind:     models.KindProject,
		New:      func() *models.Project { return &models.Project{} },
		Stub:     (*models.Project).Stub,
		Validate: func(p *models.Project) error { return validateLifecycle(p.Lifecycle) },
	}
}

func EventKind() Kind[*models.Event, models.EventStub] {
	return Kind[*models.Event, models.EventStub]{
		Kind:     models.KindEvent,
		New:      func() *models.Event { return &models.Event{} },
		Stub:     (*models.Event).Stub,
		FromStub: models.EventFromStub,
		Validate: func(e *models.Event) error {
			if e.StartTime.IsZero() || e.EndTime.IsZero() {
				return fmt.Errorf("%w: event needs start and end time", common.ErrInvalidInput)
			}
			if e.EndTime.Before(e.StartTime) {
				return fmt.Errorf("%w: event ends before it starts", common.ErrInvalidInput)
			}
			return nil
		},
	}
}

func NoteKind() Kind[*models.TextEntry, models.TextStub] {
	return Kind[*models.TextEntry, models.TextStub]{
		Kind: models.KindNote,
		New:  func() *models.TextEntry { return &models.TextEntry{} },
		Stub: (*models.TextEntry).Stub,
	}
}

func JournalKind() Kind[*models.TextEntry, models.JournalStub] {
	return Kind[*models.TextEntry, models.JournalStub]{
		Kind: models.KindJournal,
		New:  func() *models.TextEntry { return &models.TextEntry{} },
		Stub: func(e *models.TextEntry) models.JournalStub {
			return models.JournalStub{TextStub: e.Stub()}
		},
	}
}

// validateLifecycle rejects states that Start and Complete can never produce.
func validateLifecycle(l models.Lifecycle) error {
	if l.Completed && !l.Started {
		return fmt.Errorf("%w: completed without being started", common.ErrInvalidInput)
	}
	if l.Completed && l.CompletedAt.Before(l.StartedAt) {
		return fmt.Errorf("%w: completed before it was started", common.ErrInvalidInput)
	}
	return nil
}
