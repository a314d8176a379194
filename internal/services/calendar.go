package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/toastit/internal/models"
)

// CalendarProvider lists the entries of one kind that fall on a day.
type CalendarProvider interface {
	Kind() models.Kind
	CalendarEvents(ctx context.Context, date time.Time, render func(models.Stub) string) ([]string, error)
}

// Calendar merges several providers, preserving provider order.
type Calendar struct {
	providers []CalendarProvider
}

func NewCalendar(providers ...CalendarProvider) *Calendar {
	return &Calendar{providers: providers}
}

func (c *Calendar) CalendarEvents(ctx context.Context, date time.Time, render func(models.Stub) string) ([]string, error) {
	var out []string
	for _, p := range c.providers {
		lines, err := p.CalendarEvents(ctx, date, render)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: %w", p.Kind(), err)
		}
		out = append(out, lines...)
	}
	return out, nil
}
