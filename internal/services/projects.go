package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/filex"
	"github.com/dmitrijs2005/toastit/internal/models"
)

// Opener launches command on path, e.g. an editor on a project directory.
type Opener func(ctx context.Context, command, path string) error

// ExecOpener runs command with path as its only argument, attached to the
// current terminal.
func ExecOpener(ctx context.Context, command, path string) error {
	cmd := exec.CommandContext(ctx, command, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Projects manages projects and their working directories.
type Projects struct {
	*ProjectManager
	root        string
	defaultOpen string
	open        Opener
}

// NewProjects returns a project manager. Projects without a directory get
// one under root named after their id; projects without a command use
// defaultOpen.
func NewProjects(m *ProjectManager, root, defaultOpen string, open Opener) *Projects {
	if open == nil {
		open = ExecOpener
	}
	return &Projects{ProjectManager: m, root: root, defaultOpen: defaultOpen, open: open}
}

// Create stores the project and makes sure its directory exists.
func (p *Projects) Create(ctx context.Context, draft *models.Project) (*models.Project, error) {
	if draft.OpenWith == "" {
		draft.OpenWith = p.defaultOpen
	}
	created, err := p.ProjectManager.Create(ctx, draft)
	if err != nil {
		return created, err
	}
	if created.ContentDirectory != "" {
		if _, err := filex.EnsureDir(created.ContentDirectory); err != nil {
			p.log.Warn(ctx, "project directory not created", "id", created.ID, "error", err)
		}
		return created, nil
	}

	dir, err := filex.EnsureSubDir(p.root, filepath.Join("projects", created.ID))
	if err != nil {
		p.log.Warn(ctx, "project directory not created", "id", created.ID, "error", err)
		return created, nil
	}
	created.ContentDirectory = dir
	return created, p.Save(ctx, created)
}

// Open launches the project's command on its directory. A failing command
// is logged and not returned; only a missing project is an error.
func (p *Projects) Open(ctx context.Context, id string) error {
	proj, err := p.Get(ctx, id)
	if err != nil {
		return err
	}
	if proj.OpenWith == "" {
		return fmt.Errorf("%w: project %s has no open command", common.ErrInvalidInput, id)
	}

	dir := proj.ContentDirectory
	if d, err := filex.EnsureDir(dir); err == nil {
		dir = d
	}

	if err := p.open(ctx, proj.OpenWith, dir); err != nil {
		p.log.Error(ctx, "failed to open project", "id", id, "command", proj.OpenWith, "error", err)
		return nil
	}
	p.log.Info(ctx, "project opened", "id", id, "command", proj.OpenWith)
	return nil
}

// AddTask links an existing task to a project.
func (p *Projects) AddTask(ctx context.Context, projectID string, tasks *TaskManager, taskID string) error {
	if _, err := tasks.GetStub(ctx, taskID); err != nil {
		return err
	}
	_, err := p.Update(ctx, projectID, func(proj *models.Project) error {
		proj.LinkTask(taskID)
		return nil
	})
	return err
}
