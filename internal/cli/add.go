package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/timex"
)

const journalNameLayout = "2006-01-02"

// header asks for the fields every kind shares.
func (a *App) header(ctx context.Context, defaultName string) (models.Base, error) {
	var b models.Base

	prompt := "Enter name"
	if defaultName != "" {
		prompt = fmt.Sprintf("Enter name [%s]", defaultName)
	}
	name, err := GetSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return b, fmt.Errorf("get name: %w", err)
	}
	if name == "" {
		name = defaultName
	}
	if name == "" {
		return b, fmt.Errorf("%w: name is required", common.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return b, err
	}

	tags, err := GetList(a.reader, "Enter tags (comma separated)", a.out)
	if err != nil {
		return b, fmt.Errorf("get tags: %w", err)
	}

	b.Name = name
	b.SetTags(tags...)
	return b, nil
}

func (a *App) draftTask(ctx context.Context) (*models.Task, error) {
	b, err := a.header(ctx, "")
	if err != nil {
		return nil, err
	}
	due, err := GetTime(a.reader, "Enter due date", a.out)
	if err != nil {
		return nil, err
	}
	reminders, err := GetReminders(a.reader, "Enter reminders", a.out)
	if err != nil {
		return nil, err
	}
	desc, err := GetMultiline(a.reader, "Enter description", a.out)
	if err != nil {
		return nil, err
	}

	t := &models.Task{Base: b, Description: desc}
	t.DueBy = due
	t.Reminders = reminders
	return t, nil
}

func (a *App) draftProject(ctx context.Context) (*models.Project, error) {
	t, err := a.draftTask(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := GetSimpleText(a.reader, "Enter project directory (empty for default)", a.out)
	if err != nil {
		return nil, err
	}
	openWith, err := GetSimpleText(a.reader, fmt.Sprintf("Open with [%s]", a.cfg.OpenWith), a.out)
	if err != nil {
		return nil, err
	}
	return &models.Project{Task: *t, ContentDirectory: dir, OpenWith: openWith}, nil
}

func (a *App) draftEvent(ctx context.Context) (*models.Event, error) {
	b, err := a.header(ctx, "")
	if err != nil {
		return nil, err
	}
	start, err := GetTime(a.reader, "Enter start", a.out)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start is required", common.ErrInvalidInput)
	}
	end, err := GetTime(a.reader, "Enter end (empty to give a duration)", a.out)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		s, err := GetSimpleText(a.reader, "Enter duration [1h]", a.out)
		if err != nil {
			return nil, err
		}
		d := time.Hour
		if s != "" {
			if d, err = timex.ParseDuration(s); err != nil {
				return nil, err
			}
		}
		end = start.Add(d)
	}
	reminders, err := GetReminders(a.reader, "Enter reminders", a.out)
	if err != nil {
		return nil, err
	}

	ev := models.NewEvent(b.Name, start, end, b.Tags...)
	ev.Reminders = reminders
	return ev, nil
}

func (a *App) draftText(ctx context.Context, defaultName string) (*models.TextEntry, error) {
	b, err := a.header(ctx, defaultName)
	if err != nil {
		return nil, err
	}
	body, err := GetMultiline(a.reader, "Enter text", a.out)
	if err != nil {
		return nil, err
	}
	return models.NewText(b.Name, body, b.Tags...), nil
}

func (a *App) draftNote(ctx context.Context) (*models.TextEntry, error) {
	return a.draftText(ctx, "")
}

func (a *App) draftJournal(ctx context.Context) (*models.TextEntry, error) {
	return a.draftText(ctx, a.now().Format(journalNameLayout))
}
