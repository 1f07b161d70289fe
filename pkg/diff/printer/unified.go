// Package printer renders diff walks for people: a unified text diff and a
// per-node status summary. Both are diff.Callback consumers.
package printer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// DefaultContextLines is the number of unchanged lines shown around a change.
const DefaultContextLines = 3

const (
	indexSeparator = "==================================================================="
	propSeparator  = "___________________________________________________________________"
	noNewline      = "\\ No newline at end of file\n"
	binaryNotice   = "Cannot display: file marked as a binary type.\n"
)

// Options control the rendering.
type Options struct {
	// ContextLines is the number of unchanged lines around each change.
	// Negative means DefaultContextLines.
	ContextLines int
	// Color enables ANSI colouring.
	Color bool
}

type palette struct {
	header *color.Color
	hunk   *color.Color
	del    *color.Color
	ins    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header: color.New(color.Bold),
		hunk:   color.New(color.FgCyan),
		del:    color.New(color.FgRed),
		ins:    color.New(color.FgGreen),
	}

	for _, c := range []*color.Color{p.header, p.hunk, p.del, p.ins} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

// Unified writes every changed, added and deleted file as a unified diff,
// followed by its property changes. Directory property changes are written
// too. Unchanged nodes produce no output.
type Unified struct {
	diff.Base

	w       io.Writer
	context int
	colors  palette
}

var _ diff.Callback = (*Unified)(nil)

// NewUnified creates a Unified printer writing to w.
func NewUnified(w io.Writer, opts Options) *Unified {
	if opts.ContextLines < 0 {
		opts.ContextLines = DefaultContextLines
	}

	return &Unified{w: w, context: opts.ContextLines, colors: newPalette(opts.Color)}
}

// FileAdded implements diff.Callback.
func (u *Unified) FileAdded(_ context.Context, ev *diff.FileEvent) error {
	return u.writeFile(ev)
}

// FileDeleted implements diff.Callback.
func (u *Unified) FileDeleted(_ context.Context, ev *diff.FileEvent) error {
	return u.writeFile(ev)
}

// FileChanged implements diff.Callback.
func (u *Unified) FileChanged(_ context.Context, ev *diff.FileEvent) error {
	return u.writeFile(ev)
}

// DirAdded implements diff.Callback.
func (u *Unified) DirAdded(_ context.Context, ev *diff.DirEvent) error {
	return u.writeDirProps(ev)
}

// DirChanged implements diff.Callback.
func (u *Unified) DirChanged(_ context.Context, ev *diff.DirEvent) error {
	return u.writeDirProps(ev)
}

// DirDeleted implements diff.Callback.
func (u *Unified) DirDeleted(_ context.Context, ev *diff.DirEvent) error {
	return u.writeDirProps(ev)
}

func (u *Unified) writeDirProps(ev *diff.DirEvent) error {
	if len(ev.PropChanges) == 0 {
		return nil
	}

	var sb strings.Builder

	u.writeProps(&sb, ev.Path, ev.LeftProps, ev.PropChanges)

	return u.flush(sb.String())
}

func (u *Unified) writeFile(ev *diff.FileEvent) error {
	var sb strings.Builder

	path := displayPath(ev.Path)

	if ev.TextChanged() || ev.Left == nil || ev.Right == nil {
		sb.WriteString(u.colors.header.Sprint("Index: "+path) + "\n")
		sb.WriteString(indexSeparator + "\n")

		if enry.IsBinary(ev.LeftText) || enry.IsBinary(ev.RightText) {
			sb.WriteString(binaryNotice)
		} else {
			u.writeText(&sb, path, ev)
		}
	}

	u.writeProps(&sb, ev.Path, ev.LeftProps, ev.PropChanges)

	return u.flush(sb.String())
}

func (u *Unified) writeText(sb *strings.Builder, path string, ev *diff.FileEvent) {
	ops := lineDiff(string(ev.LeftText), string(ev.RightText))
	hunks := buildHunks(ops, u.context)

	if len(hunks) == 0 {
		return
	}

	fmt.Fprintf(sb, "--- %s\t(%s)\n", path, sideLabel(ev.Left))
	fmt.Fprintf(sb, "+++ %s\t(%s)\n", path, sideLabel(ev.Right))

	for _, h := range hunks {
		sb.WriteString(u.colors.hunk.Sprintf("@@ -%d,%d +%d,%d @@", h.oldStart, h.oldLen, h.newStart, h.newLen) + "\n")

		for _, op := range h.lines {
			line := string(op.kind) + strings.TrimSuffix(op.text, "\n")

			switch op.kind {
			case lineDelete:
				line = u.colors.del.Sprint(line)
			case lineInsert:
				line = u.colors.ins.Sprint(line)
			case lineContext:
			}

			sb.WriteString(line + "\n")

			if !strings.HasSuffix(op.text, "\n") {
				sb.WriteString(noNewline)
			}
		}
	}
}

func (u *Unified) writeProps(sb *strings.Builder, path string, left vcs.Props, changes []vcs.PropChange) {
	if len(changes) == 0 {
		return
	}

	fmt.Fprintf(sb, "\nProperty changes on: %s\n%s\n", displayPath(path), propSeparator)

	for _, c := range changes {
		old, had := left[c.Name]

		switch {
		case c.IsDelete():
			fmt.Fprintf(sb, "Deleted: %s\n", c.Name)
		case had:
			fmt.Fprintf(sb, "Modified: %s\n", c.Name)
		default:
			fmt.Fprintf(sb, "Added: %s\n", c.Name)
		}

		if had {
			for _, line := range splitLines(old) {
				sb.WriteString(u.colors.del.Sprint("   - "+strings.TrimSuffix(line, "\n")) + "\n")
			}
		}

		if !c.IsDelete() {
			for _, line := range splitLines(*c.Value) {
				sb.WriteString(u.colors.ins.Sprint("   + "+strings.TrimSuffix(line, "\n")) + "\n")
			}
		}
	}

	sb.WriteString("\n")
}

func (u *Unified) flush(text string) error {
	if text == "" {
		return nil
	}

	if _, err := io.WriteString(u.w, text); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}

	return nil
}

func sideLabel(src *diff.Source) string {
	if src == nil {
		return "nonexistent"
	}

	return src.Revision.String()
}

func displayPath(path string) string {
	if path == "" {
		return "."
	}

	return path
}
