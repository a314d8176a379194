package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/toastit/internal/models"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
//
// Example prompt format:
//
//	Prompt text
//	> _
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetMultiline prints a prompt to w and reads multiple lines until an empty
// line is entered (i.e., the user presses Enter twice). The trailing newline
// on each line is trimmed and the collected text is joined with '\n'.
func GetMultiline(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n(press Enter on an empty line to finish)\n"); err != nil {
		return "", err
	}

	var lines []string
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// GetConfirmation asks a yes/no question. Anything but y or yes is a no.
func GetConfirmation(reader *bufio.Reader, prompt string, w io.Writer) bool {
	answer, err := GetSimpleText(reader, prompt+" [y/N]", w)
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// GetTime reads an optional instant. An empty answer yields the zero time.
func GetTime(reader *bufio.Reader, prompt string, w io.Writer) (time.Time, error) {
	s, err := GetSimpleText(reader, prompt+" (YYYY-MM-DD [HH:MM], empty for none)", w)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	return models.ParseTime(s)
}

// GetList reads comma or space separated words.
func GetList(reader *bufio.Reader, prompt string, w io.Writer) ([]string, error) {
	s, err := GetSimpleText(reader, prompt, w)
	if err != nil {
		return nil, err
	}
	return splitList(s), nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
}

// GetReminders reads reminders such as "10m, 1d, @2024-05-01 09:00".
func GetReminders(reader *bufio.Reader, prompt string, w io.Writer) ([]models.Reminder, error) {
	s, err := GetSimpleText(reader, prompt+" (e.g. 10m, 1d, @2024-05-01 09:00)", w)
	if err != nil || s == "" {
		return nil, err
	}
	var out []models.Reminder
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := models.ParseReminder(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
