package models

import "time"

// Subtask is a checklist item inside a task's content file.
type Subtask struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}

type Task struct {
	Base
	Document
	Lifecycle
	Description string    `json:"description,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

func NewTask(name string, due time.Time, tags ...string) *Task {
	t := &Task{}
	t.Name = name
	t.DueBy = due
	t.SetTags(tags...)
	return t
}

// Stub projects the task onto its index row.
func (t *Task) Stub() TaskStub {
	return TaskStub{
		UUID:        t.ID,
		Name:        t.Name,
		Tags:        JSONList[string](NormalizeTags(t.Tags)),
		Reminders:   JSONList[Reminder](t.Reminders),
		Archived:    t.Archived,
		Started:     t.Started,
		Completed:   t.Completed,
		DueBy:       epoch(t.DueBy),
		StartedAt:   epoch(t.StartedAt),
		CompletedAt: epoch(t.CompletedAt),
		MetaPath:    t.ContentPath,
	}
}

// Project is a task with a working directory that can be opened in an
// external tool.
type Project struct {
	Task
	ContentDirectory string   `json:"content_directory,omitempty"`
	OpenWith         string   `json:"open_with,omitempty"`
	TaskIDs          []string `json:"task_ids,omitempty"`
}

func NewProject(name string, due time.Time, dir, openWith string, tags ...string) *Project {
	p := &Project{ContentDirectory: dir, OpenWith: openWith}
	p.Name = name
	p.DueBy = due
	p.SetTags(tags...)
	return p
}

func (p *Project) Stub() ProjectStub {
	return ProjectStub{
		TaskStub:    p.Task.Stub(),
		ProjectPath: p.ContentDirectory,
		OpenWith:    p.OpenWith,
	}
}

// LinkTask records a task as belonging to the project.
func (p *Project) LinkTask(id string) {
	for _, existing := range p.TaskIDs {
		if existing == id {
			return
		}
	}
	p.TaskIDs = append(p.TaskIDs, id)
}
