package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_RowIsWholeRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	draft := models.NewEvent("dentist", t0.Add(2*time.Hour), t0.Add(3*time.Hour), "health")
	draft.Reminders = []models.Reminder{{At: t0.Add(time.Hour)}}
	ev, err := e.svc.Events.Create(ctx, draft)
	require.NoError(t, err)

	got, err := e.svc.Events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "dentist", got.Name)
	assert.True(t, got.StartTime.Equal(ev.StartTime))
	assert.True(t, got.Reminders[0].At.Equal(t0.Add(time.Hour)))

	_, err = os.Stat(filepath.Join(e.store.BasePath(), "events"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "events have no content files")
}

func TestEvents_RejectsInvertedRange(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Events.Create(context.Background(), models.NewEvent("x", t0, t0.Add(-time.Minute)))
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestEvents_UpcomingAndMarkDone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	soon, err := e.svc.Events.Create(ctx, models.NewEvent("soon", t0.Add(time.Hour), t0.Add(2*time.Hour)))
	require.NoError(t, err)
	_, err = e.svc.Events.Create(ctx, models.NewEvent("later", t0.Add(48*time.Hour), t0.Add(49*time.Hour)))
	require.NoError(t, err)

	up, err := e.svc.Events.Upcoming(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, soon.ID, up[0].Key())

	all, err := e.svc.Events.Upcoming(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, e.svc.Events.MarkDone(ctx, soon.ID))
	require.ErrorIs(t, e.svc.Events.MarkDone(ctx, soon.ID), common.ErrAlreadyCompleted)

	up, err = e.svc.Events.Upcoming(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, up)
}

func TestEvents_UpcomingIncludesEarlyReminders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	far := models.NewEvent("far", t0.Add(48*time.Hour), t0.Add(49*time.Hour))
	far.Reminders = []models.Reminder{{Offset: timex.Duration{Duration: 30 * time.Hour}}}
	far, err := e.svc.Events.Create(ctx, far)
	require.NoError(t, err)

	pinned := models.NewEvent("pinned", t0.Add(96*time.Hour), t0.Add(97*time.Hour))
	pinned.Reminders = []models.Reminder{{At: t0.Add(time.Hour)}}
	pinned, err = e.svc.Events.Create(ctx, pinned)
	require.NoError(t, err)

	quiet := models.NewEvent("quiet", t0.Add(72*time.Hour), t0.Add(73*time.Hour))
	quiet.Reminders = []models.Reminder{{Offset: timex.Duration{Duration: time.Hour}}}
	_, err = e.svc.Events.Create(ctx, quiet)
	require.NoError(t, err)

	up, err := e.svc.Events.Upcoming(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	var ids []string
	for _, s := range up {
		ids = append(ids, s.Key())
	}
	assert.Equal(t, []string{far.ID, pinned.ID}, ids)
}

func TestEvents_Purge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	old, err := e.svc.Events.Create(ctx, models.NewEvent("old", t0.Add(-72*time.Hour), t0.Add(-71*time.Hour)))
	require.NoError(t, err)
	require.NoError(t, e.svc.Events.Archive(ctx, old.ID, true))
	keep, err := e.svc.Events.Create(ctx, models.NewEvent("keep", t0, t0.Add(time.Hour)))
	require.NoError(t, err)

	n, err := e.svc.Events.Purge(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.svc.Events.Get(ctx, old.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = e.svc.Events.Get(ctx, keep.ID)
	require.NoError(t, err)
}

func TestEvents_CreateLinked(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("ship", t0.Add(6*time.Hour)))
	require.NoError(t, err)

	ev, err := e.svc.Events.CreateLinked(ctx, task, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, task.ID, ev.LinkedID)
	assert.True(t, ev.EndTime.Equal(task.DueBy))
	assert.True(t, ev.StartTime.Equal(task.DueBy.Add(-30*time.Minute)))

	undated, err := e.svc.Tasks.Create(ctx, models.NewTask("someday", time.Time{}))
	require.NoError(t, err)
	_, err = e.svc.Events.CreateLinked(ctx, undated, time.Hour)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestProjects_CreateEnsuresDirectoryAndOpen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.svc.Projects.Create(ctx, models.NewProject("site", t0.Add(24*time.Hour), "", ""))
	require.NoError(t, err)
	assert.Equal(t, "code", p.OpenWith)
	require.NotEmpty(t, p.ContentDirectory)

	fi, err := os.Stat(p.ContentDirectory)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	stored, err := e.svc.Projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ContentDirectory, stored.ContentDirectory)

	require.NoError(t, e.svc.Projects.Open(ctx, p.ID))
	assert.Equal(t, []string{"code " + p.ContentDirectory}, e.opened)

	e.openErr = errors.New("exit status 1")
	require.NoError(t, e.svc.Projects.Open(ctx, p.ID), "opener failures are logged only")

	require.ErrorIs(t, e.svc.Projects.Open(ctx, "missing"), common.ErrNotFound)
}

func TestProjects_LifecycleAndTasks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	dir := filepath.Join(t.TempDir(), "work")
	p, err := e.svc.Projects.Create(ctx, models.NewProject("book", t0.Add(10*time.Hour), dir, "vim"))
	require.NoError(t, err)
	assert.Equal(t, dir, p.ContentDirectory)

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("chapter 1", time.Time{}))
	require.NoError(t, err)
	require.NoError(t, e.svc.Projects.AddTask(ctx, p.ID, e.svc.Tasks, task.ID))
	require.NoError(t, e.svc.Projects.AddTask(ctx, p.ID, e.svc.Tasks, task.ID))
	require.ErrorIs(t, e.svc.Projects.AddTask(ctx, p.ID, e.svc.Tasks, "nope"), common.ErrNotFound)

	_, err = e.svc.Projects.Start(ctx, p.ID)
	require.NoError(t, err)

	active, err := e.svc.Projects.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.KindProject, active[0].EntryKind())
	assert.Equal(t, dir, active[0].ProjectPath)

	got, err := e.svc.Projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, got.TaskIDs)
	assert.Equal(t, "0.00%", got.CompletionPercentage(e.clock.Now()))

	e.clock.Advance(5 * time.Hour)
	assert.Equal(t, "50.00%", got.CompletionPercentage(e.clock.Now()))
}
