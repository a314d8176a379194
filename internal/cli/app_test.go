package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/toastit/internal/config"
	"github.com/dmitrijs2005/toastit/internal/logging"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/repositories"
	"github.com/dmitrijs2005/toastit/internal/repositories/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is shared by the REPL and the scheduler sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func capturePrint(t *testing.T, w io.Writer) {
	t.Helper()
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) { return fmt.Fprintln(w, a...) }
	t.Cleanup(func() { printlnFn = orig })
}

var fixedNow = time.Date(2030, 5, 1, 9, 0, 0, 0, time.Local)

type testApp struct {
	*App
	out    *syncBuffer
	opened []string
}

func newTestApp(t *testing.T, lines ...string) *testApp {
	t.Helper()
	ctx := context.Background()

	repos, err := repositories.InitDatabase(ctx, repositories.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	root := t.TempDir()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.RootPath = root
	cfg.ExecThreads = 1
	cfg.TaskRefreshInterval = time.Minute
	cfg.EventRefreshInterval = time.Minute
	cfg.OpenWith = "code"

	ta := &testApp{out: &syncBuffer{}}
	capturePrint(t, ta.out)

	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	store := content.NewDiskStore(filepath.Join(root, "content"), 0)
	ta.App = newApp(cfg, repos, store, logging.Discard(), in, ta.out, func(_ context.Context, command, path string) error {
		ta.opened = append(ta.opened, command+" "+path)
		return nil
	})
	ta.now = func() time.Time { return fixedNow }
	return ta
}

func (ta *testApp) run(t *testing.T) string {
	t.Helper()
	runREPL(context.Background(), ta.App, ta.status, ta.reader)
	return ta.out.String()
}

func TestShell_TaskLifecycle(t *testing.T) {
	ta := newTestApp(t,
		"add",
		"Write report", // name
		"work, urgent", // tags
		"",             // due
		"",             // reminders
		"Draft the intro",
		"",
		"start 0",
		"done 0",
		"start 0",
		"exit",
	)

	out := ta.run(t)

	assert.Contains(t, out, "created [task] Write report")
	assert.Contains(t, out, "completed, 100.00% of the planned window used")
	assert.Contains(t, out, "already started")
	assert.Contains(t, out, "Bye!")

	stubs, err := ta.svc.Tasks.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.True(t, stubs[0].Completed)
	assert.Equal(t, []string{"urgent", "work"}, stubs[0].TagList())

	task, err := ta.svc.Tasks.Get(context.Background(), stubs[0].UUID)
	require.NoError(t, err)
	assert.Equal(t, "Draft the intro", task.Description)
}

func TestShell_SelectionOutcomes(t *testing.T) {
	ta := newTestApp(t,
		"start",
		"start 7",
		"start x",
		"frobnicate",
		"exit",
	)

	out := ta.run(t)

	assert.Contains(t, out, "Invalid Input")
	assert.Contains(t, out, "Invalid Index")
	assert.Contains(t, out, "Unknown command: frobnicate")
}

func TestShell_RemoveAsksFirst(t *testing.T) {
	ta := newTestApp(t,
		"note",
		"add",
		"Groceries",
		"",
		"milk",
		"",
		"rm 0",
		"n",
		"rm 0",
		"y",
		"exit",
	)
	ctx := context.Background()

	out := ta.run(t)
	assert.Contains(t, out, "Delete note 0 (Groceries)? [y/N]")

	stubs, err := ta.svc.Notes.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, stubs)
	assert.Contains(t, out, "toastit> note > ")
}

func TestShell_EventDoneTwice(t *testing.T) {
	ta := newTestApp(t,
		"events",
		"add",
		"Standup",
		"",
		"2030-05-01 10:00",
		"",    // end
		"30m", // duration
		"",    // reminders
		"done 0",
		"done 0",
		"cal",
		"cal tomorrow",
		"exit",
	)

	out := ta.run(t)

	assert.Contains(t, out, "marked done")
	assert.Contains(t, out, "already completed")
	assert.Contains(t, out, "Wednesday, 01 May 2030")
	assert.Contains(t, out, "[event] Standup 10:00")
	assert.Contains(t, out, "(nothing scheduled)")

	stubs, err := ta.svc.Events.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.True(t, stubs[0].Completed)
	assert.Equal(t, 30*time.Minute, time.Duration(stubs[0].EndTime-stubs[0].StartTime)*time.Second)
}

func TestShell_JournalDefaultsToToday(t *testing.T) {
	ta := newTestApp(t,
		"journal",
		"add",
		"",
		"",
		"Today was fine",
		"",
		"exit",
	)

	ta.run(t)

	stubs, err := ta.svc.Journals.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.Equal(t, "2030-05-01", stubs[0].Title())
}

func TestShell_ProjectOpenAndLink(t *testing.T) {
	ta := newTestApp(t,
		"project",
		"add",
		"Website",
		"",
		"2030-05-02 12:00",
		"",
		"",
		"", // directory
		"", // open with
		"open 0",
		"task",
		"add",
		"Ship it",
		"",
		"2030-05-02 12:00",
		"",
		"",
		"link 0 2h",
		"exit",
	)
	ctx := context.Background()

	ta.run(t)

	require.Len(t, ta.opened, 1)
	assert.True(t, strings.HasPrefix(ta.opened[0], "code "))
	assert.Contains(t, ta.opened[0], filepath.Join(ta.cfg.RootPath, "projects"))

	events, err := ta.svc.Events.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Ship it", events[0].Title())
	assert.True(t, time.Date(2030, 5, 2, 10, 0, 0, 0, time.Local).Equal(events[0].When()))
	assert.NotEmpty(t, events[0].LinkedUUID)
}

func TestShell_FilterByTag(t *testing.T) {
	ta := newTestApp(t,
		"note",
		"add", "Home note", "home", "a", "",
		"add", "Work note", "work", "b", "",
		"filter work",
		"exit",
	)

	ta.run(t)

	m := ta.modes[models.KindNote].(*entryMode[*models.TextEntry, models.TextStub])
	filtered := m.items.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "Work note", filtered[0].Item.Title())
	assert.Equal(t, 2, m.items.Len())
}

func TestShell_EditThroughEditor(t *testing.T) {
	orig := runEditor
	runEditor = func(_ context.Context, _ string, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data = bytes.Replace(data, []byte("name: Groceries"), []byte("name: Shopping"), 1)
		return os.WriteFile(path, data, 0o600)
	}
	t.Cleanup(func() { runEditor = orig })

	ta := newTestApp(t,
		"note",
		"add", "Groceries", "", "milk", "",
		"edit 0",
		"show 0",
		"exit",
	)

	out := ta.run(t)
	assert.Contains(t, out, "saved [note] Shopping")
	assert.Contains(t, out, "name: Shopping")

	stubs, err := ta.svc.Notes.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.Equal(t, "Shopping", stubs[0].Title())
}

func TestShell_RenameAndTag(t *testing.T) {
	ta := newTestApp(t,
		"note",
		"add", "Draft", "", "text", "",
		"rename 0 Final version",
		"tag 0 Ideas,misc",
		"exit",
	)

	ta.run(t)

	stubs, err := ta.svc.Notes.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.Equal(t, "Final version", stubs[0].Title())
	assert.Equal(t, []string{"ideas", "misc"}, stubs[0].TagList())
}

func TestRunShell_StopsOnExit(t *testing.T) {
	ta := newTestApp(t, "help", "exit")

	err := ta.RunShell(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ta.out.String(), "Global commands")
}

func TestCalendarDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"today", fixedNow},
		{"tomorrow", fixedNow.AddDate(0, 0, 1)},
		{"-2", fixedNow.AddDate(0, 0, -2)},
		{"+3", fixedNow.AddDate(0, 0, 3)},
		{"2030-06-01", time.Date(2030, 6, 1, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := calendarDate(tt.in, fixedNow)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, err := calendarDate("someday", fixedNow)
	assert.Error(t, err)
}
