package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/selector"
)

var errUnknownCommand = errors.New("unknown command")

// mode handles the commands of one entry kind.
type mode interface {
	Kind() models.Kind
	Help() string
	Exec(ctx context.Context, cmd string, args []string) error
	// Stubs reloads and returns the listing named by which.
	Stubs(ctx context.Context, which string) ([]models.Stub, error)
}

// entryStore is what a mode needs from an entry manager.
type entryStore[E models.Entry, S models.Stub] interface {
	Kind() models.Kind
	Create(ctx context.Context, draft E) (E, error)
	Get(ctx context.Context, id string) (E, error)
	GetStub(ctx context.Context, id string) (S, error)
	Save(ctx context.Context, e E) error
	Update(ctx context.Context, id string, fn func(E) error) (E, error)
	Start(ctx context.Context, id string) (E, error)
	Complete(ctx context.Context, id string) (models.Report, error)
	Archive(ctx context.Context, id string, archived bool) error
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]S, error)
	ListAll(ctx context.Context) ([]S, error)
	ListArchived(ctx context.Context) ([]S, error)
}

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

type entryMode[E models.Entry, S models.Stub] struct {
	app   *App
	store entryStore[E, S]
	items *selector.Collection[S]

	// draft prompts for a new entry.
	draft func(ctx context.Context) (E, error)
	// done overrides the default Complete for "done N".
	done  func(ctx context.Context, s S) (string, error)
	extra map[string]command
}

func newEntryMode[E models.Entry, S models.Stub](app *App, store entryStore[E, S], draft func(context.Context) (E, error)) *entryMode[E, S] {
	return &entryMode[E, S]{
		app:   app,
		store: store,
		draft: draft,
		extra: map[string]command{},
	}
}

func (m *entryMode[E, S]) Kind() models.Kind { return m.store.Kind() }

func (m *entryMode[E, S]) Help() string {
	cmds := []string{"ls [all|archived]", "add", "show N", "edit N", "rename N name", "tag N tags", "filter [tag]", "archive N", "unarchive <id>", "rm N"}
	switch {
	case m.Kind().HasLifecycle():
		cmds = append(cmds, "start N", "done N")
	case m.done != nil:
		cmds = append(cmds, "done N")
	}
	names := make([]string, 0, len(m.extra))
	for name := range m.extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		usage := m.extra[name].usage
		if usage == "" {
			usage = name
		}
		cmds = append(cmds, usage)
	}
	return "Available commands: " + strings.Join(cmds, ", ")
}

func (m *entryMode[E, S]) render(s S) string { return stubLine(s) }

func (m *entryMode[E, S]) reload(ctx context.Context, which string) error {
	var (
		stubs []S
		err   error
	)
	switch which {
	case "all":
		stubs, err = m.store.ListAll(ctx)
	case "archived":
		stubs, err = m.store.ListArchived(ctx)
	case "", "active":
		stubs, err = m.store.ListActive(ctx)
	default:
		return fmt.Errorf("ls: unknown listing %q", which)
	}
	if err != nil {
		return err
	}
	if m.items == nil {
		m.items = selector.New(stubs)
	} else {
		m.items.Replace(stubs)
	}
	return nil
}

// collection returns the last listing, loading the default one first.
func (m *entryMode[E, S]) collection(ctx context.Context) (*selector.Collection[S], error) {
	if m.items == nil {
		if err := m.reload(ctx, "all"); err != nil {
			return nil, err
		}
	}
	return m.items, nil
}

func (m *entryMode[E, S]) ask(q string) bool {
	return GetConfirmation(m.app.reader, q, m.app.out)
}

func (m *entryMode[E, S]) refreshed(ctx context.Context, s S) (S, error) {
	return m.store.GetStub(ctx, s.Key())
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (m *entryMode[E, S]) Exec(ctx context.Context, cmd string, args []string) error {
	if c, ok := m.extra[cmd]; ok {
		return c.run(ctx, args)
	}

	switch cmd {
	case "ls", "l", "list":
		return m.list(ctx, first(args))
	case "add":
		return m.add(ctx)
	case "unarchive":
		return m.unarchive(ctx, args)
	case "filter":
		return m.filter(ctx, args)
	}

	items, err := m.collection(ctx)
	if err != nil {
		return err
	}

	var p *selector.Prompt[S]
	switch cmd {
	case "start":
		p = items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
			Update(func(s S) (S, error) {
				if _, err := m.store.Start(ctx, s.Key()); err != nil {
					return s, err
				}
				m.app.followUp(m.Kind(), s.When())
				return m.refreshed(ctx, s)
			})

	case "done":
		var report string
		out, err := items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
			Update(func(s S) (S, error) {
				if m.done != nil {
					msg, err := m.done(ctx, s)
					report = msg
					if err != nil {
						return s, err
					}
					return m.refreshed(ctx, s)
				}
				r, err := m.store.Complete(ctx, s.Key())
				if err != nil {
					return s, err
				}
				report = fmt.Sprintf("completed, %s of the planned window used", r.Percentage)
				return m.refreshed(ctx, s)
			}).
			Run(m.render)
		if err != nil {
			return err
		}
		m.app.println(out, report)
		return nil

	case "archive":
		p = items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
			Consume(func(s S) error { return m.store.Archive(ctx, s.Key(), true) }).
			Remove()

	case "rm", "delete":
		p = items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
			Confirm(m.ask, func(s S) string {
				return fmt.Sprintf("Delete %s %s (%s)?", m.Kind(), first(args), s.Title())
			}).
			Consume(func(s S) error { return m.store.Delete(ctx, s.Key()) }).
			Remove()

	case "rename":
		name := strings.Join(args[min(1, len(args)):], " ")
		p = items.Prompt().RequireTokens(args, 2).SelectIndex(first(args)).
			Update(func(s S) (S, error) {
				if _, err := m.store.Update(ctx, s.Key(), func(e E) error {
					e.Identity().Name = name
					return nil
				}); err != nil {
					return s, err
				}
				return m.refreshed(ctx, s)
			})

	case "tag":
		tags := splitList(strings.Join(args[min(1, len(args)):], ","))
		p = items.Prompt().RequireTokens(args, 2).SelectIndex(first(args)).
			Update(func(s S) (S, error) {
				if _, err := m.store.Update(ctx, s.Key(), func(e E) error {
					e.Identity().SetTags(tags...)
					return nil
				}); err != nil {
					return s, err
				}
				return m.refreshed(ctx, s)
			})

	case "show":
		p = items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
			Consume(func(s S) error {
				e, err := m.store.Get(ctx, s.Key())
				if err != nil {
					return err
				}
				return renderEntry(m.app.out, e)
			})
		_, err := p.Run(nil)
		return err

	case "edit":
		return m.edit(ctx, items, args)

	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}

	out, err := p.Run(m.render)
	if err != nil {
		return err
	}
	m.app.println(out)
	return nil
}

func (m *entryMode[E, S]) Stubs(ctx context.Context, which string) ([]models.Stub, error) {
	if err := m.reload(ctx, which); err != nil {
		return nil, err
	}
	items := m.items.Items()
	out := make([]models.Stub, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out, nil
}

func (m *entryMode[E, S]) list(ctx context.Context, which string) error {
	if err := m.reload(ctx, which); err != nil {
		return err
	}
	renderStubs(m.app.out, m.items.Filtered(), m.app.now(), m.app.cfg.MaxPreviewLength)
	return nil
}

func (m *entryMode[E, S]) add(ctx context.Context) error {
	draft, err := m.draft(ctx)
	if err != nil {
		return err
	}
	created, err := m.store.Create(ctx, draft)
	if err != nil {
		return err
	}
	stub, err := m.store.GetStub(ctx, created.Identity().ID)
	if err != nil {
		return err
	}
	items, err := m.collection(ctx)
	if err != nil {
		return err
	}
	if !containsKey(items, stub.Key()) {
		items.Add(stub)
	}
	m.app.followUp(m.Kind(), stub.When())
	m.app.println("created", stubLine(stub), faint.Sprint(stub.Key()))
	return nil
}

func containsKey[S models.Stub](c *selector.Collection[S], id string) bool {
	for _, s := range c.Items() {
		if s.Key() == id {
			return true
		}
	}
	return false
}

func (m *entryMode[E, S]) unarchive(ctx context.Context, args []string) error {
	if len(args) < 1 {
		m.app.println(selector.InvalidInput)
		return nil
	}
	if err := m.store.Archive(ctx, args[0], false); err != nil {
		return err
	}
	stub, err := m.store.GetStub(ctx, args[0])
	if err != nil {
		return err
	}
	m.app.println("restored", stubLine(stub))
	return nil
}

func (m *entryMode[E, S]) filter(ctx context.Context, args []string) error {
	items, err := m.collection(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		items.ResetFiltered()
		renderStubs(m.app.out, items.Filtered(), m.app.now(), m.app.cfg.MaxPreviewLength)
		return nil
	}

	want := models.NormalizeTags(args)
	_, err = items.Prompt().
		Filter(func(s S) bool {
			have := s.TagList()
			for _, w := range want {
				found := false
				for _, h := range have {
					if h == w {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		}).
		ForEach(func([]selector.Indexed[S]) error {
			renderStubs(m.app.out, items.Filtered(), m.app.now(), m.app.cfg.MaxPreviewLength)
			return nil
		}).
		Run(nil)
	return err
}

func (m *entryMode[E, S]) edit(ctx context.Context, items *selector.Collection[S], args []string) error {
	var (
		entry   E
		loaded  bool
		changed bool
	)
	out, err := items.Prompt().RequireTokens(args, 1).SelectIndex(first(args)).
		Consume(func(s S) error {
			e, err := m.store.Get(ctx, s.Key())
			if err != nil {
				return err
			}
			entry, loaded = e, true
			return nil
		}).
		Wait(func() error {
			if !loaded {
				return nil
			}
			var err error
			changed, err = editEntry(ctx, m.app.cfg.Editor, entry)
			if err != nil || !changed {
				return err
			}
			return m.store.Save(ctx, entry)
		}).
		Run(m.render)
	if err != nil {
		return err
	}
	if !changed {
		m.app.println(out)
		return nil
	}

	n, _ := strconv.Atoi(first(args))
	stub, err := m.store.GetStub(ctx, entry.Identity().ID)
	if err != nil {
		return err
	}
	items.Set(n, stub)
	m.app.println("saved", stubLine(stub))
	return nil
}
