// Package services orchestrates the index and content stores.
//
// A single generic Manager is instantiated per entry kind; the kind-specific
// parts (constructor, stub projection, validation) are injected through a
// Kind value. Writes are ordered content-first on create and row-first on
// delete, so the only inconsistency a crash can leave is an orphaned
// content file, never a row pointing at nothing.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/logging"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/repositories/content"
	"github.com/dmitrijs2005/toastit/internal/timex"
	"github.com/google/uuid"
)

// Index is the per-kind stub table the manager needs.
type Index[S any] interface {
	Upsert(ctx context.Context, stub S) error
	Get(ctx context.Context, id string) (S, error)
	ListActive(ctx context.Context) ([]S, error)
	ListAll(ctx context.Context) ([]S, error)
	ListArchived(ctx context.Context) ([]S, error)
	SetArchived(ctx context.Context, id string, archived bool) error
	Delete(ctx context.Context, id string) error
}

// Kind is the strategy that adapts Manager to one entry kind.
type Kind[E models.Entry, S models.Stub] struct {
	Kind models.Kind
	// New returns an empty entry to decode content into.
	New func() E
	// Stub projects an entry onto its index row.
	Stub func(E) S
	// FromStub rebuilds an entry from its row. Set only for kinds without a
	// content file.
	FromStub func(S) E
	// Validate checks a draft before it is created or saved. Optional.
	Validate func(E) error
}

type Manager[E models.Entry, S models.Stub] struct {
	kind    Kind[E, S]
	index   Index[S]
	content content.Store
	log     logging.Logger

	now   func() time.Time
	newID func() string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	sync.Mutex
	refs int
}

func NewManager[E models.Entry, S models.Stub](kind Kind[E, S], index Index[S], store content.Store, log logging.Logger) *Manager[E, S] {
	return &Manager[E, S]{
		kind:    kind,
		index:   index,
		content: store,
		log:     log.With("kind", string(kind.Kind)),
		now:     time.Now,
		newID:   uuid.NewString,
		locks:   make(map[string]*entryLock),
	}
}

func (m *Manager[E, S]) Kind() models.Kind { return m.kind.Kind }

// lock serializes user-initiated mutations of one entry id.
func (m *Manager[E, S]) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &entryLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

func (m *Manager[E, S]) validate(e E) error {
	if strings.TrimSpace(e.Identity().Name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrInvalidInput)
	}
	if m.kind.Validate != nil {
		return m.kind.Validate(e)
	}
	return nil
}

// Create assigns an id and content path to draft, writes its content file
// and then its index row.
func (m *Manager[E, S]) Create(ctx context.Context, draft E) (E, error) {
	if err := m.validate(draft); err != nil {
		return draft, err
	}

	b := draft.Identity()
	b.ID = m.newID()
	b.Tags = models.NormalizeTags(b.Tags)
	b.Archived = false

	if doc, ok := any(draft).(models.Documented); ok {
		d := doc.Doc()
		if d.CreatedAt.IsZero() {
			d.CreatedAt = m.now()
		}
		d.ContentPath = content.PathFor(m.kind.Kind, d.CreatedAt, b.ID)
		if err := m.content.Save(ctx, d.ContentPath, draft); err != nil {
			return draft, fmt.Errorf("failed to save content for %s: %w", b.ID, err)
		}
	}

	if err := m.index.Upsert(ctx, m.kind.Stub(draft)); err != nil {
		if doc, ok := any(draft).(models.Documented); ok {
			if derr := m.content.Delete(ctx, doc.Doc().ContentPath); derr != nil {
				m.log.Warn(ctx, "orphaned content file", "id", b.ID, "error", derr)
			}
		}
		return draft, fmt.Errorf("failed to index %s: %w", b.ID, err)
	}

	m.log.Info(ctx, "entry created", "id", b.ID)
	return draft, nil
}

// Get loads an entry by id. A row whose content file is missing or
// unreadable fails with common.ErrContentCorrupt.
func (m *Manager[E, S]) Get(ctx context.Context, id string) (E, error) {
	stub, err := m.index.Get(ctx, id)
	if err != nil {
		var zero E
		return zero, err
	}
	return m.load(ctx, stub)
}

func (m *Manager[E, S]) GetStub(ctx context.Context, id string) (S, error) {
	return m.index.Get(ctx, id)
}

func (m *Manager[E, S]) load(ctx context.Context, stub S) (E, error) {
	if m.kind.FromStub != nil {
		return m.kind.FromStub(stub), nil
	}

	e := m.kind.New()
	if stub.Path() == "" {
		return e, fmt.Errorf("%w: %s %s has no content path", common.ErrContentCorrupt, m.kind.Kind, stub.Key())
	}
	if err := m.content.Load(ctx, stub.Path(), e); err != nil {
		return e, fmt.Errorf("failed to load %s %s: %w", m.kind.Kind, stub.Key(), err)
	}
	if e.Identity().ID != stub.Key() {
		return e, fmt.Errorf("%w: %s holds id %q, want %q", common.ErrContentCorrupt, stub.Path(), e.Identity().ID, stub.Key())
	}
	e.Identity().Archived = stub.IsArchived()
	return e, nil
}

// persist writes content then row for an entry that already exists.
func (m *Manager[E, S]) persist(ctx context.Context, e E) error {
	if doc, ok := any(e).(models.Documented); ok {
		if err := m.content.Save(ctx, doc.Doc().ContentPath, e); err != nil {
			return fmt.Errorf("failed to save content for %s: %w", e.Identity().ID, err)
		}
	}
	if err := m.index.Upsert(ctx, m.kind.Stub(e)); err != nil {
		return fmt.Errorf("failed to index %s: %w", e.Identity().ID, err)
	}
	return nil
}

// Save overwrites an existing entry. The id, content path, creation time
// and archived flag are taken from the stored entry. Progress only moves
// through Start and Complete, so a save that changes it fails with
// common.ErrInvalidState.
func (m *Manager[E, S]) Save(ctx context.Context, e E) error {
	if err := m.validate(e); err != nil {
		return err
	}
	defer m.lock(e.Identity().ID)()
	return m.save(ctx, e)
}

// save expects the caller to hold the entry lock.
func (m *Manager[E, S]) save(ctx context.Context, e E) error {
	id := e.Identity().ID
	stub, err := m.index.Get(ctx, id)
	if err != nil {
		return err
	}
	stored, err := m.load(ctx, stub)
	if err != nil {
		return err
	}
	if err := sameProgress(stored, e); err != nil {
		return fmt.Errorf("%s %s: %w", m.kind.Kind, id, err)
	}

	e.Identity().Archived = stub.IsArchived()
	e.Identity().Tags = models.NormalizeTags(e.Identity().Tags)
	if doc, ok := any(e).(models.Documented); ok {
		doc.Doc().ContentPath = stub.Path()
		if doc.Doc().CreatedAt.IsZero() {
			return fmt.Errorf("%w: %s has no creation time", common.ErrInvalidInput, id)
		}
	}
	return m.persist(ctx, e)
}

// sameProgress rejects saves that rewrite lifecycle state or reopen an
// attended event.
func sameProgress(stored, next models.Entry) error {
	if st, ok := stored.(models.Tracked); ok {
		nt, ok := next.(models.Tracked)
		if !ok {
			return common.ErrInvalidState
		}
		a, b := st.State(), nt.State()
		if a.Started != b.Started || a.Completed != b.Completed ||
			!a.StartedAt.Equal(b.StartedAt) || !a.CompletedAt.Equal(b.CompletedAt) {
			return fmt.Errorf("%w: progress changes only through start and done", common.ErrInvalidState)
		}
	}
	if se, ok := stored.(*models.Event); ok && se.Completed {
		if ne, ok := next.(*models.Event); ok && !ne.Completed {
			return fmt.Errorf("%w: event already attended", common.ErrInvalidState)
		}
	}
	return nil
}

// Update loads an entry, applies fn and saves the result under one lock.
func (m *Manager[E, S]) Update(ctx context.Context, id string, fn func(E) error) (E, error) {
	defer m.lock(id)()

	e, err := m.Get(ctx, id)
	if err != nil {
		return e, err
	}
	if err := fn(e); err != nil {
		return e, err
	}
	e.Identity().ID = id
	if err := m.validate(e); err != nil {
		return e, err
	}
	return e, m.save(ctx, e)
}

func (m *Manager[E, S]) tracked(ctx context.Context, id string) (E, models.Tracked, error) {
	if !m.kind.Kind.HasLifecycle() {
		var zero E
		return zero, nil, fmt.Errorf("%s: %w", m.kind.Kind, common.ErrLifecycleDisabled)
	}
	e, err := m.Get(ctx, id)
	if err != nil {
		return e, nil, err
	}
	tr, ok := any(e).(models.Tracked)
	if !ok {
		return e, nil, fmt.Errorf("%s: %w", m.kind.Kind, common.ErrLifecycleDisabled)
	}
	return e, tr, nil
}

// Start marks an entry started now.
func (m *Manager[E, S]) Start(ctx context.Context, id string) (E, error) {
	defer m.lock(id)()

	e, tr, err := m.tracked(ctx, id)
	if err != nil {
		return e, err
	}
	if err := tr.State().Start(m.now(), tr.Doc().CreatedAt); err != nil {
		return e, fmt.Errorf("%s %s: %w", m.kind.Kind, id, err)
	}
	if err := m.persist(ctx, e); err != nil {
		return e, err
	}
	m.log.Info(ctx, "entry started", "id", id)
	return e, nil
}

// Complete marks a started entry completed now and reports how much of its
// start..due window was used.
func (m *Manager[E, S]) Complete(ctx context.Context, id string) (models.Report, error) {
	defer m.lock(id)()

	e, tr, err := m.tracked(ctx, id)
	if err != nil {
		return models.Report{}, err
	}
	if err := tr.State().Complete(m.now()); err != nil {
		return models.Report{}, fmt.Errorf("%s %s: %w", m.kind.Kind, id, err)
	}
	if err := m.persist(ctx, e); err != nil {
		return models.Report{}, err
	}
	r := models.NewReport(id, *tr.State())
	m.log.Info(ctx, "entry completed", "id", id, "window_used", r.Percentage)
	return r, nil
}

// Archive sets or clears the archived flag. The index row is authoritative
// for this flag; Get overlays it onto the loaded content.
func (m *Manager[E, S]) Archive(ctx context.Context, id string, archived bool) error {
	defer m.lock(id)()

	if err := m.index.SetArchived(ctx, id, archived); err != nil {
		return err
	}
	m.log.Info(ctx, "entry archive flag changed", "id", id, "archived", archived)
	return nil
}

// Delete removes the index row and then the content file. A file that
// cannot be removed is logged and left behind as garbage.
func (m *Manager[E, S]) Delete(ctx context.Context, id string) error {
	defer m.lock(id)()

	stub, err := m.index.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.index.Delete(ctx, id); err != nil {
		return err
	}
	if p := stub.Path(); p != "" {
		if err := m.content.Delete(ctx, p); err != nil {
			m.log.Warn(ctx, "content file left behind", "id", id, "path", p, "error", err)
		}
	}
	m.log.Info(ctx, "entry deleted", "id", id)
	return nil
}

func (m *Manager[E, S]) ListActive(ctx context.Context) ([]S, error) {
	return sorted(m.index.ListActive(ctx))
}

func (m *Manager[E, S]) ListAll(ctx context.Context) ([]S, error) {
	return sorted(m.index.ListAll(ctx))
}

func (m *Manager[E, S]) ListArchived(ctx context.Context) ([]S, error) {
	return sorted(m.index.ListArchived(ctx))
}

// Upcoming returns the active stubs the scheduler evaluates.
func (m *Manager[E, S]) Upcoming(ctx context.Context, _ time.Time) ([]models.Stub, error) {
	stubs, err := m.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return toStubs(stubs), nil
}

// CalendarEvents renders every unarchived entry whose reference time falls
// on the calendar day of date.
func (m *Manager[E, S]) CalendarEvents(ctx context.Context, date time.Time, render func(models.Stub) string) ([]string, error) {
	stubs, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range stubs {
		when := s.When()
		if when.IsZero() || !timex.SameDay(date, when) {
			continue
		}
		out = append(out, render(s))
	}
	return out, nil
}

// sorted orders stubs by reference time, entries without one last, ties by id.
func sorted[S models.Stub](stubs []S, err error) ([]S, error) {
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stubs, func(i, j int) bool {
		lt, rt := stubs[i].When(), stubs[j].When()
		switch {
		case lt.IsZero() && rt.IsZero():
			return stubs[i].Key() < stubs[j].Key()
		case lt.IsZero():
			return false
		case rt.IsZero():
			return true
		case lt.Equal(rt):
			return stubs[i].Key() < stubs[j].Key()
		default:
			return lt.Before(rt)
		}
	})
	return stubs, nil
}

func toStubs[S models.Stub](in []S) []models.Stub {
	out := make([]models.Stub, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// IsRecoverable reports whether err is a caller-side condition (missing
// entry, wrong lifecycle state, bad input) rather than a storage fault.
func IsRecoverable(err error) bool {
	return errors.Is(err, common.ErrNotFound) ||
		errors.Is(err, common.ErrInvalidState) ||
		errors.Is(err, common.ErrInvalidInput)
}
