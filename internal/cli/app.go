package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/toastit/internal/config"
	"github.com/dmitrijs2005/toastit/internal/filex"
	"github.com/dmitrijs2005/toastit/internal/logging"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/repositories"
	"github.com/dmitrijs2005/toastit/internal/repositories/content"
	"github.com/dmitrijs2005/toastit/internal/scheduler"
	"github.com/dmitrijs2005/toastit/internal/services"
	"github.com/dmitrijs2005/toastit/internal/timex"
	"github.com/fatih/color"
)

const calendarLayout = "Monday, 02 January 2006"

type App struct {
	cfg   *config.Config
	repos *repositories.Repositories
	svc   *services.Services
	sched *scheduler.Scheduler
	log   logging.Logger

	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time

	modes   map[models.Kind]mode
	current models.Kind

	// schedCtx is set while the scheduler runs in the background.
	schedCtx context.Context
}

// NewApp opens the stores described by cfg and wires the services on top.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	log, err := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}

	if _, err := filex.EnsureDir(cfg.RootPath); err != nil {
		return nil, fmt.Errorf("root directory: %w", err)
	}

	repos, err := repositories.InitDatabase(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	store, err := openContentStore(ctx, cfg)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	return newApp(cfg, repos, store, log, in, out, nil), nil
}

func openContentStore(ctx context.Context, cfg *config.Config) (content.Store, error) {
	switch cfg.ContentBackend {
	case config.BackendS3:
		return content.NewS3Store(ctx, content.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	default:
		dir, err := filex.EnsureDir(cfg.ContentPath())
		if err != nil {
			return nil, fmt.Errorf("content directory: %w", err)
		}
		return content.NewDiskStore(dir, cfg.ContentCacheBytes), nil
	}
}

func newApp(cfg *config.Config, repos *repositories.Repositories, store content.Store, log logging.Logger, in io.Reader, out io.Writer, opener services.Opener) *App {
	if f, ok := out.(*os.File); !ok || !isTerminal(int(f.Fd())) {
		color.NoColor = true
	}

	svc := services.New(repos, store, log, services.Options{
		ProjectRoot: cfg.ProjectsPath(),
		OpenWith:    cfg.OpenWith,
		Opener:      opener,
	})

	out = lockWriter(out)
	sched := scheduler.New(cfg.ExecThreads, NewTerminalSink(out), repos.Metadata, log)
	sched.
		Add(scheduler.Job{Source: svc.Tasks, Interval: cfg.TaskRefreshInterval}).
		Add(scheduler.Job{Source: svc.Projects, Interval: cfg.TaskRefreshInterval}).
		Add(scheduler.Job{
			Source:      svc.Events,
			Interval:    cfg.EventRefreshInterval,
			LookForward: cfg.EventLookForward,
			Purger:      svc.Events,
			Retention:   cfg.EventRetention,
		})

	a := &App{
		cfg:     cfg,
		repos:   repos,
		svc:     svc,
		sched:   sched,
		log:     log,
		reader:  bufio.NewReader(in),
		out:     out,
		now:     time.Now,
		current: models.KindTask,
	}
	a.modes = a.buildModes()
	return a
}

func (a *App) buildModes() map[models.Kind]mode {
	tasks := newEntryMode[*models.Task, models.TaskStub](a, a.svc.Tasks, a.draftTask)
	tasks.extra["link"] = command{usage: "link N [duration]", run: func(ctx context.Context, args []string) error {
		return a.linkEvent(ctx, tasks, args)
	}}

	projects := newEntryMode[*models.Project, models.ProjectStub](a, a.svc.Projects, a.draftProject)
	projects.extra["open"] = command{usage: "open N", run: func(ctx context.Context, args []string) error {
		items, err := projects.collection(ctx)
		if err != nil {
			return err
		}
		out, err := items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
			Consume(func(s models.ProjectStub) error { return a.svc.Projects.Open(ctx, s.Key()) }).
			Run(projects.render)
		if err != nil {
			return err
		}
		a.println(out)
		return nil
	}}
	projects.extra["addtask"] = command{usage: "addtask N <task id>", run: func(ctx context.Context, args []string) error {
		items, err := projects.collection(ctx)
		if err != nil {
			return err
		}
		out, err := items.Prompt().RequireTokens(args, 2).SelectIndex(first(args)).
			Consume(func(s models.ProjectStub) error {
				return a.svc.Projects.AddTask(ctx, s.Key(), a.svc.Tasks, args[1])
			}).
			Run(projects.render)
		if err != nil {
			return err
		}
		a.println(out)
		return nil
	}}

	events := newEntryMode[*models.Event, models.EventStub](a, a.svc.Events, a.draftEvent)
	events.done = func(ctx context.Context, s models.EventStub) (string, error) {
		return "marked done", a.svc.Events.MarkDone(ctx, s.Key())
	}

	return map[models.Kind]mode{
		models.KindTask:    tasks,
		models.KindProject: projects,
		models.KindEvent:   events,
		models.KindNote:    newEntryMode[*models.TextEntry, models.TextStub](a, a.svc.Notes, a.draftNote),
		models.KindJournal: newEntryMode[*models.TextEntry, models.JournalStub](a, a.svc.Journals, a.draftJournal),
	}
}

// linkEvent adds an event covering the last part of a task's window.
func (a *App) linkEvent(ctx context.Context, tasks *entryMode[*models.Task, models.TaskStub], args []string) error {
	d := time.Hour
	if len(args) > 1 {
		var err error
		if d, err = timex.ParseDuration(args[1]); err != nil {
			return err
		}
	}

	items, err := tasks.collection(ctx)
	if err != nil {
		return err
	}
	var linked *models.Event
	out, err := items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
		Consume(func(s models.TaskStub) error {
			t, err := a.svc.Tasks.Get(ctx, s.Key())
			if err != nil {
				return err
			}
			linked, err = a.svc.Events.CreateLinked(ctx, t, d)
			return err
		}).
		Run(tasks.render)
	if err != nil {
		return err
	}
	if linked == nil {
		a.println(out)
		return nil
	}
	a.followUp(models.KindEvent, linked.StartTime)
	a.println("linked", stubLine(linked.Stub()), faint.Sprint(linked.ID))
	return nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.repos.Close()
}

func (a *App) println(args ...any) {
	if len(args) == 1 && args[0] == "" {
		return
	}
	_, _ = fmt.Fprintln(a.out, args...)
}

func (a *App) status() string {
	return string(a.current)
}

// Help lists the commands of the current mode and the global ones.
func (a *App) Help() string {
	kinds := make([]string, 0, len(a.modes))
	for _, k := range models.Kinds() {
		kinds = append(kinds, string(k))
	}
	return a.modes[a.current].Help() + "\n" +
		"Global commands: help, cal [date], " + strings.Join(kinds, ", ") + ", exit"
}

// SwitchMode makes name the current kind. It accepts singular and plural
// kind names.
func (a *App) SwitchMode(name string) bool {
	k, err := models.ParseKind(name)
	if err != nil {
		return false
	}
	if _, ok := a.modes[k]; !ok {
		return false
	}
	a.current = k
	return true
}

func (a *App) Exec(ctx context.Context, cmd string, args []string) error {
	return a.modes[a.current].Exec(ctx, cmd, args)
}

// Calendar prints what happens on the given day, today by default.
func (a *App) Calendar(ctx context.Context, args []string) error {
	date := a.now()
	if len(args) > 0 {
		d, err := calendarDate(args[0], date)
		if err != nil {
			return err
		}
		date = d
	}

	lines, err := a.svc.Calendar.CalendarEvents(ctx, date, stubLine)
	if err != nil {
		return err
	}

	a.println(bold.Sprint(date.Format(calendarLayout)))
	if len(lines) == 0 {
		a.println(faint.Sprint("(nothing scheduled)"))
		return nil
	}
	for _, l := range lines {
		a.println("  " + l)
	}
	return nil
}

// calendarDate accepts a date, "today", "tomorrow" or a signed day offset
// such as +3.
func calendarDate(s string, now time.Time) (time.Time, error) {
	switch s {
	case "today":
		return now, nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		if n, err := strconv.Atoi(s); err == nil {
			return now.AddDate(0, 0, n), nil
		}
	}
	return models.ParseTime(s)
}

// followUp asks the running scheduler to look at kind again right after
// when, so a freshly added or started entry is not missed until the next
// regular tick.
func (a *App) followUp(kind models.Kind, when time.Time) {
	if a.schedCtx == nil || when.IsZero() {
		return
	}
	d := when.Sub(a.now())
	if d < 0 {
		return
	}
	a.sched.Recheck(a.schedCtx, kind, d+time.Second)
}

// startScheduler runs the scheduler until ctx ends. The returned channel
// yields its result.
func (a *App) startScheduler(ctx context.Context) <-chan error {
	a.schedCtx = ctx
	errc := make(chan error, 1)
	go func() {
		errc <- a.sched.Run(ctx)
	}()
	return errc
}

// RunShell runs the interactive loop with the scheduler in the background.
func (a *App) RunShell(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := a.startScheduler(ctx)
	runREPL(ctx, a, a.status, a.reader)
	cancel()
	return <-errc
}

// Watch runs only the scheduler, in the foreground.
func (a *App) Watch(ctx context.Context) error {
	a.log.Info(ctx, "watching for due entries", "threads", a.cfg.ExecThreads)
	return a.sched.Run(ctx)
}

// Purge deletes events that ended more than the retention period ago.
func (a *App) Purge(ctx context.Context) (int, error) {
	return a.svc.Events.Purge(ctx, a.now().Add(-a.cfg.EventRetention))
}
