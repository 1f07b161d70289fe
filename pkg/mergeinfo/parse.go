package mergeinfo

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// ErrParse is matched by every mergeinfo parse failure.
var ErrParse = errors.New("mergeinfo parse error")

// Parse failure reasons, wrapped by ParseError.
var (
	ErrMissingColon        = errors.New("no ':' between path and revision ranges")
	ErrRelativePath        = errors.New("source path must start with '/'")
	ErrEmptyRangeList      = errors.New("path maps to an empty revision range")
	ErrInvalidRevision     = errors.New("invalid revision number")
	ErrRangeOrder          = errors.New("range start must be less than its end")
	ErrOverlapsInheritance = errors.New("overlapping ranges with different inheritance")
	ErrDuplicatePath       = errors.New("source path listed more than once")
)

// ParseError reports malformed mergeinfo text with the path and range
// involved, so a corrupted property can be fixed by hand.
type ParseError struct {
	Path  string
	Range string
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Path == "":
		return fmt.Sprintf("could not parse mergeinfo: %v", e.Err)
	case e.Range == "":
		return fmt.Sprintf("could not parse mergeinfo for '%s': %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("could not parse mergeinfo for '%s' range '%s': %v", e.Path, e.Range, e.Err)
	}
}

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads a mergeinfo property value. Entries are separated by newlines;
// a single-line value may use ';' instead. Each entry is "path:ranges" where
// the path runs up to the last ':' and ranges is a comma separated list of
// "N", "N-M" and "N-M*" (non-inheritable).
func Parse(text string) (MergeInfo, error) {
	info := MergeInfo{}

	for _, line := range splitEntries(text) {
		line = strings.TrimRight(line, "\r \t")
		if strings.TrimSpace(line) == "" {
			continue
		}

		path, rl, err := parseLine(line)
		if err != nil {
			return nil, err
		}

		if _, dup := info[path]; dup {
			return nil, &ParseError{Path: path, Err: ErrDuplicatePath}
		}

		info[path] = rl
	}

	return info, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(text string) MergeInfo {
	info, err := Parse(text)
	if err != nil {
		panic(err.Error())
	}

	return info
}

func splitEntries(text string) []string {
	if !strings.Contains(text, "\n") && strings.Contains(text, ";") {
		return strings.Split(text, ";")
	}

	return strings.Split(text, "\n")
}

func parseLine(line string) (string, RangeList, error) {
	idx := strings.LastIndexByte(line, ':')
	if idx < 0 {
		return "", RangeList{}, &ParseError{Path: line, Err: ErrMissingColon}
	}

	path := strings.TrimSpace(line[:idx])
	if !strings.HasPrefix(path, "/") {
		return "", RangeList{}, &ParseError{Path: path, Err: ErrRelativePath}
	}

	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	text := strings.TrimSpace(line[idx+1:])
	if text == "" {
		return "", RangeList{}, &ParseError{Path: path, Err: ErrEmptyRangeList}
	}

	tokens := strings.Split(text, ",")
	ranges := make([]Range, 0, len(tokens))

	for _, tok := range tokens {
		r, err := parseRange(strings.TrimSpace(tok))
		if err != nil {
			return "", RangeList{}, &ParseError{Path: path, Range: tok, Err: err}
		}

		ranges = append(ranges, r)
	}

	slices.SortStableFunc(ranges, func(a, b Range) int {
		switch {
		case a.Start != b.Start:
			return int(a.Start - b.Start)
		default:
			return int(a.End - b.End)
		}
	})

	// Furthest end seen so far, indexed by inheritability.
	var reach [2]*Range

	for i := range ranges {
		cur := &ranges[i]

		if other := reach[boolIndex(!cur.Inheritable)]; other != nil && cur.Start < other.End {
			return "", RangeList{}, &ParseError{
				Path:  path,
				Range: other.String() + "," + cur.String(),
				Err:   ErrOverlapsInheritance,
			}
		}

		if own := reach[boolIndex(cur.Inheritable)]; own == nil || cur.End > own.End {
			reach[boolIndex(cur.Inheritable)] = cur
		}
	}

	rl, err := NewRangeList(ranges...)
	if err != nil {
		return "", RangeList{}, &ParseError{Path: path, Range: text, Err: err}
	}

	return path, rl, nil
}

func parseRange(tok string) (Range, error) {
	r := Range{Inheritable: true}

	if strings.HasSuffix(tok, "*") {
		r.Inheritable = false
		tok = strings.TrimSuffix(tok, "*")
	}

	first, last, isSpan := strings.Cut(tok, "-")

	lo, err := parseRevision(first)
	if err != nil {
		return Range{}, err
	}

	if !isSpan {
		r.Start, r.End = lo-1, lo

		return r, nil
	}

	hi, err := parseRevision(last)
	if err != nil {
		return Range{}, err
	}

	if lo >= hi {
		return Range{}, ErrRangeOrder
	}

	r.Start, r.End = lo-1, hi

	return r, nil
}

func parseRevision(s string) (vcs.Revnum, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return vcs.InvalidRevnum, fmt.Errorf("%w: '%s'", ErrInvalidRevision, s)
	}

	return vcs.Revnum(n), nil
}
