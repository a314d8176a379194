package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/toastit/internal/common"
)

// Kind names an entry variant.
type Kind string

const (
	KindTask    Kind = "task"
	KindProject Kind = "project"
	KindEvent   Kind = "event"
	KindNote    Kind = "note"
	KindJournal Kind = "journal"
)

// Kinds lists every kind in display order.
func Kinds() []Kind {
	return []Kind{KindTask, KindProject, KindEvent, KindNote, KindJournal}
}

// Table is the index table holding stubs of this kind. It also names the
// kind's directory in the content store.
func (k Kind) Table() string {
	switch k {
	case KindTask:
		return "tasks"
	case KindProject:
		return "projects"
	case KindEvent:
		return "events"
	case KindNote:
		return "notes"
	case KindJournal:
		return "journals"
	}
	return ""
}

// ArchiveTable is the reserved archive table for this kind.
func (k Kind) ArchiveTable() string {
	return string(k) + "_archive"
}

// HasContent reports whether entries of this kind keep a content file.
func (k Kind) HasContent() bool {
	return k != KindEvent
}

// HasLifecycle reports whether entries of this kind can be started and completed.
func (k Kind) HasLifecycle() bool {
	return k == KindTask || k == KindProject
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if s == string(k) || s == k.Table() {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", common.ErrInvalidInput, s)
}
