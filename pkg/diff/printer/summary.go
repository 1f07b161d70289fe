package printer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Status letters used by the summary.
const (
	StatusAdded    = "A"
	StatusDeleted  = "D"
	StatusModified = "M"
	StatusNone     = " "
)

// SummaryEntry is one node whose text, properties or presence changed.
type SummaryEntry struct {
	Path string
	Kind vcs.NodeKind
	// Status is StatusAdded, StatusDeleted, StatusModified or StatusNone.
	Status string
	// PropsModified is set when the properties changed.
	PropsModified bool
	// SizeDelta is the size of the right text minus the left text.
	SizeDelta int64
}

// Summarizer collects a status line per changed node. It is safe to read
// Entries while a walk is still reporting.
type Summarizer struct {
	diff.Base

	mu      sync.Mutex
	entries []SummaryEntry
}

var _ diff.Callback = (*Summarizer)(nil)

// NewSummarizer creates an empty Summarizer.
func NewSummarizer() *Summarizer {
	return &Summarizer{}
}

// Entries returns the collected entries in report order.
func (s *Summarizer) Entries() []SummaryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SummaryEntry(nil), s.entries...)
}

func (s *Summarizer) add(e SummaryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
}

func (s *Summarizer) file(status string, ev *diff.FileEvent) {
	s.add(SummaryEntry{
		Path:          ev.Path,
		Kind:          vcs.KindFile,
		Status:        status,
		PropsModified: len(ev.PropChanges) > 0,
		SizeDelta:     int64(len(ev.RightText)) - int64(len(ev.LeftText)),
	})
}

func (s *Summarizer) dir(status string, ev *diff.DirEvent) {
	s.add(SummaryEntry{
		Path:          ev.Path,
		Kind:          vcs.KindDir,
		Status:        status,
		PropsModified: len(ev.PropChanges) > 0,
	})
}

// FileAdded implements diff.Callback.
func (s *Summarizer) FileAdded(_ context.Context, ev *diff.FileEvent) error {
	s.file(StatusAdded, ev)

	return nil
}

// FileDeleted implements diff.Callback.
func (s *Summarizer) FileDeleted(_ context.Context, ev *diff.FileEvent) error {
	s.file(StatusDeleted, ev)

	return nil
}

// FileChanged implements diff.Callback.
func (s *Summarizer) FileChanged(_ context.Context, ev *diff.FileEvent) error {
	status := StatusNone
	if ev.TextChanged() {
		status = StatusModified
	}

	s.file(status, ev)

	return nil
}

// DirAdded implements diff.Callback.
func (s *Summarizer) DirAdded(_ context.Context, ev *diff.DirEvent) error {
	s.dir(StatusAdded, ev)

	return nil
}

// DirDeleted implements diff.Callback.
func (s *Summarizer) DirDeleted(_ context.Context, ev *diff.DirEvent) error {
	s.dir(StatusDeleted, ev)

	return nil
}

// DirChanged implements diff.Callback.
func (s *Summarizer) DirChanged(_ context.Context, ev *diff.DirEvent) error {
	s.dir(StatusNone, ev)

	return nil
}

// Render writes the entries as a table with a totals footer.
func (s *Summarizer) Render(w io.Writer) error {
	entries := s.Entries()

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.AppendHeader(table.Row{"Status", "Props", "Path", "Size"})

	var added, deleted, modified int

	var grown, shrunk int64

	for _, e := range entries {
		props := StatusNone
		if e.PropsModified {
			props = StatusModified
		}

		path := displayPath(e.Path)
		if e.Kind == vcs.KindDir {
			path += "/"
		}

		tbl.AppendRow(table.Row{e.Status, props, path, sizeDelta(e.SizeDelta)})

		switch e.Status {
		case StatusAdded:
			added++
		case StatusDeleted:
			deleted++
		default:
			modified++
		}

		if e.SizeDelta > 0 {
			grown += e.SizeDelta
		} else {
			shrunk -= e.SizeDelta
		}
	}

	tbl.AppendFooter(table.Row{
		"", "", fmt.Sprintf("%d added, %d deleted, %d modified", added, deleted, modified),
		fmt.Sprintf("+%s -%s", humanize.Bytes(uint64(grown)), humanize.Bytes(uint64(shrunk))),
	})

	tbl.Render()

	return nil
}

func sizeDelta(delta int64) string {
	switch {
	case delta > 0:
		return "+" + humanize.Bytes(uint64(delta))
	case delta < 0:
		return "-" + humanize.Bytes(uint64(-delta))
	default:
		return ""
	}
}
