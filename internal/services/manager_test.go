package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/logging"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/repositories"
	"github.com/dmitrijs2005/toastit/internal/repositories/content"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type env struct {
	repos   *repositories.Repositories
	store   *content.DiskStore
	clock   *clock
	svc     *Services
	opened  []string
	openErr error
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	repos, err := repositories.InitDatabase(ctx, repositories.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	root := t.TempDir()
	e := &env{
		repos: repos,
		store: content.NewDiskStore(filepath.Join(root, "content"), 0),
		clock: &clock{now: t0},
	}
	e.svc = New(repos, e.store, logging.Discard(), Options{
		ProjectRoot: root,
		OpenWith:    "code",
		Opener: func(_ context.Context, command, path string) error {
			e.opened = append(e.opened, command+" "+path)
			return e.openErr
		},
	})

	seq := 0
	ids := func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	for _, set := range []func(){
		func() { e.svc.Tasks.now, e.svc.Tasks.newID = e.clock.Now, ids },
		func() { e.svc.Projects.now, e.svc.Projects.newID = e.clock.Now, ids },
		func() { e.svc.Events.now, e.svc.Events.newID = e.clock.Now, ids },
		func() { e.svc.Notes.now, e.svc.Notes.newID = e.clock.Now, ids },
		func() { e.svc.Journals.now, e.svc.Journals.newID = e.clock.Now, ids },
	} {
		set()
	}
	return e
}

func (e *env) contentFile(p string) string {
	return filepath.Join(e.store.BasePath(), filepath.FromSlash(p))
}

func TestCreate_WritesContentAndRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("Write report", t0.Add(48*time.Hour), "Work", "work"))
	require.NoError(t, err)

	assert.Equal(t, "id-001", task.ID)
	assert.Equal(t, t0, task.CreatedAt)
	assert.Equal(t, "tasks/2024/03/id-001.json", task.ContentPath)
	assert.Equal(t, []string{"work"}, task.Tags)

	_, err = os.Stat(e.contentFile(task.ContentPath))
	require.NoError(t, err)

	stub, err := e.repos.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ContentPath, stub.MetaPath)

	got, err := e.svc.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(task, got))
}

func TestCreate_RejectsEmptyName(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Notes.Create(context.Background(), models.NewText("  ", "body"))
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestStartComplete_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("t", t0.Add(10*time.Hour)))
	require.NoError(t, err)

	_, err = e.svc.Tasks.Complete(ctx, task.ID)
	require.ErrorIs(t, err, common.ErrNotStarted)

	e.clock.Advance(time.Hour)
	started, err := e.svc.Tasks.Start(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, started.Started)
	assert.Equal(t, t0.Add(time.Hour), started.StartedAt)

	_, err = e.svc.Tasks.Start(ctx, task.ID)
	require.ErrorIs(t, err, common.ErrAlreadyStarted)

	e.clock.Advance(4*time.Hour + 30*time.Minute)
	report, err := e.svc.Tasks.Complete(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, report.ID)
	assert.InDelta(t, 0.5, report.Fraction, 1e-9)
	assert.Equal(t, "50.00%", report.Percentage)

	_, err = e.svc.Tasks.Complete(ctx, task.ID)
	require.ErrorIs(t, err, common.ErrAlreadyCompleted)
	require.ErrorIs(t, err, common.ErrInvalidState)

	got, err := e.svc.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.False(t, got.CompletedAt.Before(got.StartedAt))
	assert.Equal(t, 1.0, got.Completion(e.clock.Now()))

	stub, err := e.repos.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stub.Completed)
	assert.True(t, stub.Done())
}

func TestStart_ClampsToCreation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("t", time.Time{}))
	require.NoError(t, err)

	e.clock.Advance(-time.Hour)
	started, err := e.svc.Tasks.Start(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.CreatedAt, started.StartedAt)
}

func TestLifecycle_DisabledForTextAndEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	note, err := e.svc.Notes.Create(ctx, models.NewText("n", "b"))
	require.NoError(t, err)
	_, err = e.svc.Notes.Start(ctx, note.ID)
	require.ErrorIs(t, err, common.ErrLifecycleDisabled)

	ev, err := e.svc.Events.Create(ctx, models.NewEvent("standup", t0, t0.Add(15*time.Minute)))
	require.NoError(t, err)
	_, err = e.svc.Events.Complete(ctx, ev.ID)
	require.ErrorIs(t, err, common.ErrLifecycleDisabled)
}

func TestArchive_HidesAndRestores(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	note, err := e.svc.Notes.Create(ctx, models.NewText("ideas", "many", "misc"))
	require.NoError(t, err)

	require.NoError(t, e.svc.Notes.Archive(ctx, note.ID, true))

	all, err := e.svc.Notes.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	archived, err := e.svc.Notes.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	require.NoError(t, e.svc.Notes.Archive(ctx, note.ID, false))
	restored, err := e.svc.Notes.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(note, restored))

	all, err = e.svc.Notes.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.ErrorIs(t, e.svc.Notes.Archive(ctx, "missing", true), common.ErrNotFound)
}

func TestDelete_RemovesRowAndFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	j, err := e.svc.Journals.Create(ctx, models.NewText("day one", "sunny"))
	require.NoError(t, err)
	assert.Equal(t, "journals/2024/03/"+j.ID+".json", j.ContentPath)

	require.NoError(t, e.svc.Journals.Delete(ctx, j.ID))

	_, err = e.svc.Journals.Get(ctx, j.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = os.Stat(e.contentFile(j.ContentPath))
	require.True(t, errors.Is(err, os.ErrNotExist))

	require.ErrorIs(t, e.svc.Journals.Delete(ctx, j.ID), common.ErrNotFound)
}

func TestGet_DanglingRowIsContentCorrupt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("t", time.Time{}))
	require.NoError(t, err)
	require.NoError(t, os.Remove(e.contentFile(task.ContentPath)))

	_, err = e.svc.Tasks.Get(ctx, task.ID)
	require.ErrorIs(t, err, common.ErrContentCorrupt)
}

func TestGet_DanglingRowWithReadCache(t *testing.T) {
	ctx := context.Background()
	repos, err := repositories.InitDatabase(ctx, repositories.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	store := content.NewDiskStore(t.TempDir(), 1<<20)
	svc := New(repos, store, logging.Discard(), Options{ProjectRoot: t.TempDir()})

	task, err := svc.Tasks.Create(ctx, models.NewTask("t", time.Time{}))
	require.NoError(t, err)
	_, err = svc.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(store.BasePath(), filepath.FromSlash(task.ContentPath))))
	_, err = svc.Tasks.Get(ctx, task.ID)
	require.ErrorIs(t, err, common.ErrContentCorrupt)
}

func TestSave_KeepsIdentityFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("t", time.Time{}))
	require.NoError(t, err)
	require.NoError(t, e.svc.Tasks.Archive(ctx, task.ID, true))

	edited := *task
	edited.Name = "renamed"
	edited.ContentPath = "elsewhere.json"
	edited.Archived = false
	edited.Subtasks = []models.Subtask{{Name: "draft"}}
	require.NoError(t, e.svc.Tasks.Save(ctx, &edited))

	got, err := e.svc.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, task.ContentPath, got.ContentPath)
	assert.True(t, got.Archived)
	assert.Equal(t, []models.Subtask{{Name: "draft"}}, got.Subtasks)

	missing := models.NewTask("x", time.Time{})
	missing.ID = "nope"
	require.ErrorIs(t, e.svc.Tasks.Save(ctx, missing), common.ErrNotFound)
}

func TestSave_RejectsProgressRewrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("a", t0.Add(10*time.Hour)))
	require.NoError(t, err)
	_, err = e.svc.Tasks.Start(ctx, task.ID)
	require.NoError(t, err)
	e.clock.Advance(time.Hour)
	_, err = e.svc.Tasks.Complete(ctx, task.ID)
	require.NoError(t, err)

	fresh := models.NewTask("a", t0.Add(10*time.Hour))
	fresh.ID = task.ID
	fresh.CreatedAt = task.CreatedAt
	require.ErrorIs(t, e.svc.Tasks.Save(ctx, fresh), common.ErrInvalidState)

	got, err := e.svc.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Started)
	assert.True(t, got.Completed)

	got.Name = "b"
	require.NoError(t, e.svc.Tasks.Save(ctx, got), "an unchanged lifecycle saves")

	_, err = e.svc.Tasks.Update(ctx, task.ID, func(tk *models.Task) error {
		tk.CompletedAt = tk.CompletedAt.Add(time.Hour)
		return nil
	})
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestSave_EventStaysAttended(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ev, err := e.svc.Events.Create(ctx, models.NewEvent("standup", t0.Add(time.Hour), t0.Add(2*time.Hour)))
	require.NoError(t, err)
	require.NoError(t, e.svc.Events.MarkDone(ctx, ev.ID))

	_, err = e.svc.Events.Update(ctx, ev.ID, func(ev *models.Event) error {
		ev.Completed = false
		return nil
	})
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestUpdate_HoldsLockUntilSaved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.Tasks.Create(ctx, models.NewTask("a", t0.Add(10*time.Hour)))
	require.NoError(t, err)

	inside := make(chan struct{})
	release := make(chan struct{})
	startErr := make(chan error, 1)

	go func() {
		<-inside
		_, err := e.svc.Tasks.Start(ctx, task.ID)
		startErr <- err
	}()

	updated := make(chan error, 1)
	go func() {
		_, err := e.svc.Tasks.Update(ctx, task.ID, func(tk *models.Task) error {
			tk.Name = "renamed"
			close(inside)
			<-release
			return nil
		})
		updated <- err
	}()

	<-inside
	select {
	case err := <-startErr:
		t.Fatalf("start ran while update held the entry: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	require.NoError(t, <-updated)
	require.NoError(t, <-startErr)

	got, err := e.svc.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.True(t, got.Started)
}

func TestListAll_SortedByReferenceTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mk := func(name string, due time.Time) string {
		task, err := e.svc.Tasks.Create(ctx, models.NewTask(name, due))
		require.NoError(t, err)
		return task.ID
	}
	noDue := mk("no due", time.Time{})
	late := mk("late", t0.Add(72*time.Hour))
	early := mk("early", t0.Add(24*time.Hour))
	tieB := mk("tie b", t0.Add(48*time.Hour))
	tieA := mk("tie a", t0.Add(48*time.Hour))

	all, err := e.svc.Tasks.ListAll(ctx)
	require.NoError(t, err)

	var ids []string
	for _, s := range all {
		ids = append(ids, s.UUID)
	}
	// tieB was created first and so has the smaller id
	assert.Equal(t, []string{early, tieB, tieA, late, noDue}, ids)

	active, err := e.svc.Tasks.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "nothing started yet")
}

func TestCalendarEvents_SameDayOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Tasks.Create(ctx, models.NewTask("today", t0.Add(3*time.Hour)))
	require.NoError(t, err)
	_, err = e.svc.Tasks.Create(ctx, models.NewTask("tomorrow", t0.Add(27*time.Hour)))
	require.NoError(t, err)
	_, err = e.svc.Events.Create(ctx, models.NewEvent("lunch", t0.Add(3*time.Hour), t0.Add(4*time.Hour)))
	require.NoError(t, err)
	_, err = e.svc.Projects.Create(ctx, models.NewProject("launch", t0.Add(5*time.Hour), "", ""))
	require.NoError(t, err)

	render := func(s models.Stub) string { return string(s.EntryKind()) + ":" + s.Title() }

	lines, err := e.svc.Tasks.CalendarEvents(ctx, t0, render)
	require.NoError(t, err)
	assert.Equal(t, []string{"task:today"}, lines)

	lines, err = e.svc.Calendar.CalendarEvents(ctx, t0, render)
	require.NoError(t, err)
	assert.Equal(t, []string{"event:lunch", "project:launch", "task:today"}, lines)
}

type failingIndex struct {
	Index[models.TextStub]
}

func (failingIndex) Upsert(context.Context, models.TextStub) error {
	return common.StorageError("upsert notes", errors.New("disk full"))
}

func TestCreate_IndexFailureRemovesContent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m := NewManager(NoteKind(), failingIndex{Index: e.repos.Notes}, e.store, logging.Discard())
	m.now = e.clock.Now
	m.newID = func() string { return "fixed" }

	_, err := m.Create(ctx, models.NewText("n", "b"))
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")

	_, statErr := os.Stat(e.contentFile(content.PathFor(models.KindNote, t0, "fixed")))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(common.ErrNotFound))
	assert.True(t, IsRecoverable(fmt.Errorf("x: %w", common.ErrAlreadyStarted)))
	assert.False(t, IsRecoverable(common.StorageError("op", errors.New("boom"))))
}
