package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/timex"
	"gopkg.in/yaml.v3"
)

// runEditor is a test seam for launching the editor on a file.
var runEditor = func(ctx context.Context, editor, path string) error {
	args := strings.Fields(editor)
	if len(args) == 0 {
		return fmt.Errorf("%w: no editor configured", common.ErrInvalidInput)
	}
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// frontMatter is the editable header of an entry.
type frontMatter struct {
	Name      string           `yaml:"name"`
	Tags      []string         `yaml:"tags,omitempty"`
	Due       string           `yaml:"due,omitempty"`
	Start     string           `yaml:"start,omitempty"`
	End       string           `yaml:"end,omitempty"`
	Reminders []string         `yaml:"reminders,omitempty"`
	Subtasks  []models.Subtask `yaml:"subtasks,omitempty"`
}

const editLayout = "2006-01-02 15:04"

func formatEditTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(editLayout)
}

func parseEditTime(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return models.ParseTime(s)
}

func encodeDocument(fm frontMatter, body string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("---\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(fm); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	buf.WriteString("---\n\n")
	buf.WriteString(body)

	return buf.Bytes(), nil
}

func decodeDocument(data []byte) (frontMatter, string, error) {
	var fm frontMatter

	parts := bytes.SplitN(data, []byte("---"), 3)
	if len(parts) < 3 {
		return fm, "", fmt.Errorf("%w: invalid frontmatter format", common.ErrInvalidInput)
	}
	if err := yaml.Unmarshal(parts[1], &fm); err != nil {
		return fm, "", fmt.Errorf("%w: failed to parse frontmatter: %w", common.ErrInvalidInput, err)
	}
	return fm, string(bytes.TrimSpace(parts[2])), nil
}

// documentFor renders the editable parts of e.
func documentFor(e models.Entry) (frontMatter, string) {
	b := e.Identity()
	fm := frontMatter{Name: b.Name, Tags: b.Tags}
	for _, r := range b.Reminders {
		fm.Reminders = append(fm.Reminders, reminderText(r))
	}

	switch v := e.(type) {
	case *models.Project:
		fm.Due = formatEditTime(v.DueBy)
		fm.Subtasks = v.Subtasks
		return fm, v.Description
	case *models.Task:
		fm.Due = formatEditTime(v.DueBy)
		fm.Subtasks = v.Subtasks
		return fm, v.Description
	case *models.Event:
		fm.Start = formatEditTime(v.StartTime)
		fm.End = formatEditTime(v.EndTime)
		return fm, ""
	case *models.TextEntry:
		return fm, v.Body
	}
	return fm, ""
}

func reminderText(r models.Reminder) string {
	if !r.At.IsZero() {
		return "@" + formatEditTime(r.At)
	}
	return timex.FormatWindow(r.Offset.Duration)
}

// applyDocument writes edited fields back onto e.
func applyDocument(e models.Entry, fm frontMatter, body string) error {
	if strings.TrimSpace(fm.Name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrInvalidInput)
	}

	var reminders []models.Reminder
	for _, s := range fm.Reminders {
		r, err := models.ParseReminder(s)
		if err != nil {
			return err
		}
		reminders = append(reminders, r)
	}

	b := e.Identity()
	b.Name = fm.Name
	b.SetTags(fm.Tags...)
	b.Reminders = reminders

	switch v := e.(type) {
	case *models.Project:
		return applyTask(&v.Task, fm, body)
	case *models.Task:
		return applyTask(v, fm, body)
	case *models.Event:
		start, err := parseEditTime(fm.Start)
		if err != nil {
			return err
		}
		end, err := parseEditTime(fm.End)
		if err != nil {
			return err
		}
		v.StartTime, v.EndTime = start, end
	case *models.TextEntry:
		v.Body = body
	}
	return nil
}

func applyTask(t *models.Task, fm frontMatter, body string) error {
	due, err := parseEditTime(fm.Due)
	if err != nil {
		return err
	}
	t.DueBy = due
	t.Subtasks = fm.Subtasks
	t.Description = body
	return nil
}

// tempEdit opens initial in the editor through a temporary file and returns
// what was saved.
func tempEdit(ctx context.Context, editor string, initial []byte) ([]byte, error) {
	f, err := os.CreateTemp("", "toastit-*.md")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(initial); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := runEditor(ctx, editor, path); err != nil {
		return nil, fmt.Errorf("editor %s: %w", editor, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read temp file: %w", err)
	}
	return data, nil
}

// editEntry round-trips e through the editor. It reports false when the
// file came back unchanged.
func editEntry(ctx context.Context, editor string, e models.Entry) (bool, error) {
	fm, body := documentFor(e)
	initial, err := encodeDocument(fm, body)
	if err != nil {
		return false, err
	}

	edited, err := tempEdit(ctx, editor, initial)
	if err != nil {
		return false, err
	}
	if bytes.Equal(initial, edited) {
		return false, nil
	}

	fm, body, err = decodeDocument(edited)
	if err != nil {
		return false, err
	}
	return true, applyDocument(e, fm, body)
}
