// Package models contains the organizer's entry types and the stub
// projections stored in the index.
//
// Every entry embeds Base. Entries with a content file also embed Document,
// and progress-bearing entries (tasks and projects) embed Lifecycle. The
// promoted accessor methods let generic code reach those parts without
// knowing the concrete type.
package models

import (
	"sort"
	"strings"
	"time"
)

// Entry is implemented by pointers to every entry type.
type Entry interface {
	Identity() *Base
}

// Documented entries keep their full record in the content store.
type Documented interface {
	Entry
	Doc() *Document
}

// Tracked entries carry start/complete lifecycle state.
type Tracked interface {
	Documented
	State() *Lifecycle
}

// Base holds the fields shared by every kind.
type Base struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Tags      []string   `json:"tags,omitempty"`
	Reminders []Reminder `json:"reminders,omitempty"`
	Archived  bool       `json:"archived"`
}

func (b *Base) Identity() *Base { return b }

// SetTags replaces the tag set.
func (b *Base) SetTags(tags ...string) {
	b.Tags = NormalizeTags(tags)
}

func (b *Base) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Document locates an entry's content file.
type Document struct {
	CreatedAt   time.Time `json:"created_at"`
	ContentPath string    `json:"content_path"`
}

func (d *Document) Doc() *Document { return d }

// NormalizeTags lower-cases, trims, de-duplicates and sorts tags so that the
// stored set does not depend on insertion order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
