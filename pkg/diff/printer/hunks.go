package printer

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type lineKind byte

const (
	lineContext lineKind = ' '
	lineDelete  lineKind = '-'
	lineInsert  lineKind = '+'
)

type lineOp struct {
	kind lineKind
	// text includes the trailing newline when the line has one.
	text string
}

type hunk struct {
	oldStart, oldLen int
	newStart, newLen int
	lines            []lineOp
}

// lineDiff returns the line-level edit script turning left into right.
func lineDiff(left, right string) []lineOp {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(left, right)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []lineOp

	for _, d := range diffs {
		kind := lineContext

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = lineDelete
		case diffmatchpatch.DiffInsert:
			kind = lineInsert
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range splitLines(d.Text) {
			ops = append(ops, lineOp{kind: kind, text: line})
		}
	}

	return ops
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// buildHunks groups ops into hunks keeping up to context unchanged lines
// around every change. Changes closer than 2*context lines share a hunk.
func buildHunks(ops []lineOp, context int) []hunk {
	keep := make([]bool, len(ops))

	for i, op := range ops {
		if op.kind == lineContext {
			continue
		}

		for j := max(0, i-context); j <= min(len(ops)-1, i+context); j++ {
			keep[j] = true
		}
	}

	var hunks []hunk

	var cur *hunk

	oldLine, newLine := 1, 1

	for i, op := range ops {
		if keep[i] {
			if cur == nil {
				hunks = append(hunks, hunk{oldStart: oldLine, newStart: newLine})
				cur = &hunks[len(hunks)-1]
			}

			cur.lines = append(cur.lines, op)

			if op.kind != lineInsert {
				cur.oldLen++
			}

			if op.kind != lineDelete {
				cur.newLen++
			}
		} else {
			cur = nil
		}

		if op.kind != lineInsert {
			oldLine++
		}

		if op.kind != lineDelete {
			newLine++
		}
	}

	// An empty side starts at the line before the hunk.
	for i := range hunks {
		if hunks[i].oldLen == 0 {
			hunks[i].oldStart--
		}

		if hunks[i].newLen == 0 {
			hunks[i].newStart--
		}
	}

	return hunks
}
