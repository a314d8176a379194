package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/toastit/internal/models"
)

// lockedWriter serializes writes from the shell and the scheduler so each
// Write lands whole.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func lockWriter(w io.Writer) io.Writer {
	if lw, ok := w.(*lockedWriter); ok {
		return lw
	}
	return &lockedWriter{w: w}
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// TerminalSink prints scheduler notifications, one Write per line.
type TerminalSink struct {
	w   io.Writer
	now func() time.Time
}

func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: lockWriter(w), now: time.Now}
}

func (s *TerminalSink) Notify(_ context.Context, kind models.Kind, id, message string) {
	_, _ = fmt.Fprintf(s.w, "%s %s %s %s\n",
		faint.Sprint(s.now().Format("15:04")),
		yellow.Sprintf("[%s]", kind),
		message,
		faint.Sprint(id),
	)
}
