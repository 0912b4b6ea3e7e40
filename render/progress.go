package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/reident/reident/operations"
)

// Progress is an operations.Reporter that prints one line per finished operation.
type Progress struct {
	w      io.Writer
	total  int
	colors palette

	mu   sync.Mutex
	done int
}

var _ operations.Reporter = (*Progress)(nil)

// NewProgress returns a Progress for a run of total operations.
func NewProgress(w io.Writer, total int, useColor bool) *Progress {
	return &Progress{w: w, total: total, colors: newPalette(useColor)}
}

// AddResult prints res.
func (p *Progress) AddResult(res operations.ExecutionResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	status := p.colors.status(res.Status)
	// pad on the raw text so color codes do not skew the column
	if pad := len("success") - len(res.Status); pad > 0 {
		status += fmt.Sprintf("%*s", pad, "")
	}
	_, err := fmt.Fprintf(p.w, "[%d/%d] %-16s %s  %s\n", p.done, p.total, res.OperationID, status, res.Detail)

	return err
}
