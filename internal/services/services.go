package services

import (
	"github.com/dmitrijs2005/toastit/internal/logging"
	"github.com/dmitrijs2005/toastit/internal/repositories"
	"github.com/dmitrijs2005/toastit/internal/repositories/content"
)

// Services wires one manager per kind over shared stores.
type Services struct {
	Tasks    *TaskManager
	Projects *Projects
	Events   *Events
	Notes    *NoteManager
	Journals *JournalManager
	Calendar *Calendar
}

type Options struct {
	// ProjectRoot is where project directories are created by default.
	ProjectRoot string
	// OpenWith is the default command for opening projects.
	OpenWith string
	Opener   Opener
}

func New(repos *repositories.Repositories, store content.Store, log logging.Logger, o Options) *Services {
	s := &Services{
		Tasks:    NewManager(TaskKind(), repos.Tasks, store, log),
		Projects: NewProjects(NewManager(ProjectKind(), repos.Projects, store, log), o.ProjectRoot, o.OpenWith, o.Opener),
		Events:   NewEvents(repos.Events, NewManager(EventKind(), repos.Events, store, log)),
		Notes:    NewManager(NoteKind(), repos.Notes, store, log),
		Journals: NewManager(JournalKind(), repos.Journals, store, log),
	}
	s.Calendar = NewCalendar(s.Events, s.Projects, s.Tasks)
	return s
}
