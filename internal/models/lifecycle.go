package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
)

// Lifecycle is the progress state shared by tasks and projects.
//
// Transitions only move forward: completed implies started, and
// CompletedAt >= StartedAt >= creation time.
type Lifecycle struct {
	Started     bool      `json:"started"`
	Completed   bool      `json:"completed"`
	DueBy       time.Time `json:"due_by,omitzero"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

func (l *Lifecycle) State() *Lifecycle { return l }

// Start marks the entry started at now, clamped to no earlier than created.
func (l *Lifecycle) Start(now, created time.Time) error {
	if l.Started {
		return common.ErrAlreadyStarted
	}
	if now.Before(created) {
		now = created
	}
	l.Started = true
	l.StartedAt = now
	return nil
}

// Complete marks the entry completed at now, clamped to no earlier than StartedAt.
func (l *Lifecycle) Complete(now time.Time) error {
	if !l.Started {
		return common.ErrNotStarted
	}
	if l.Completed {
		return common.ErrAlreadyCompleted
	}
	if now.Before(l.StartedAt) {
		now = l.StartedAt
	}
	l.Completed = true
	l.CompletedAt = now
	return nil
}

// Elapsed is the share of the start..due window consumed at now, clamped to
// [0, 1]. ok is false when the window is unknown.
func (l Lifecycle) Elapsed(now time.Time) (fraction float64, ok bool) {
	if !l.Started || l.StartedAt.IsZero() || l.DueBy.IsZero() || !l.DueBy.After(l.StartedAt) {
		return 0, false
	}
	window := l.DueBy.Sub(l.StartedAt)
	f := float64(now.Sub(l.StartedAt)) / float64(window)
	switch {
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	return f, true
}

// Completion reports progress at now: 1 once completed, the elapsed share
// while in progress, and 0 when not started or indeterminate.
func (l Lifecycle) Completion(now time.Time) float64 {
	if l.Completed {
		return 1
	}
	f, _ := l.Elapsed(now)
	return f
}

func (l Lifecycle) CompletionPercentage(now time.Time) string {
	return Percentage(l.Completion(now))
}

// Percentage formats a fraction as "12.50%".
func Percentage(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

// Report describes a finished entry.
type Report struct {
	ID          string
	CompletedAt time.Time
	// Fraction is the share of the start..due window used up when the entry
	// was completed, or 1 when no window was set.
	Fraction   float64
	Percentage string
}

// NewReport builds a report from a lifecycle that was just completed.
func NewReport(id string, l Lifecycle) Report {
	f, ok := l.Elapsed(l.CompletedAt)
	if !ok {
		f = 1
	}
	return Report{ID: id, CompletedAt: l.CompletedAt, Fraction: f, Percentage: Percentage(f)}
}
