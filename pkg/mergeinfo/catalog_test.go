package mergeinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

func TestElide_IdenticalInheritedMergeinfo(t *testing.T) {
	t.Parallel()

	catalog := Catalog{
		"":    MustParse("/branch:1-10"),
		"sub": MustParse("/branch/sub:1-10"),
	}

	got := Elide(catalog, nil)

	assert.Contains(t, got, "")
	assert.NotContains(t, got, "sub")
}

func TestElide_NonInheritableChildKept(t *testing.T) {
	t.Parallel()

	catalog := Catalog{
		"":    MustParse("/branch:1-10"),
		"sub": MustParse("/branch/sub:1-10*"),
	}

	got := Elide(catalog, nil)

	assert.Contains(t, got, "sub")
}

func TestElide_AgainstParentInfo(t *testing.T) {
	t.Parallel()

	parent := MustParse("/branch:1-10")

	got := Elide(Catalog{"A": MustParse("/branch/A:1-10")}, parent)
	assert.Empty(t, got)

	got = Elide(Catalog{"A": MustParse("/branch/A:1-10*")}, parent)
	assert.Contains(t, got, "A")

	got = Elide(Catalog{"A": MustParse("/branch/A:1-10")}, nil)
	assert.Contains(t, got, "A")
}

func TestElide_NearestAncestorWins(t *testing.T) {
	t.Parallel()

	catalog := Catalog{
		"":      MustParse("/branch:1-10"),
		"A":     MustParse("/branch/A:1-12"),
		"A/B/C": MustParse("/branch/A/B/C:1-12"),
		"D":     MustParse("/branch/D:1-12"),
	}

	got := Elide(catalog, nil)

	assert.ElementsMatch(t, []string{"", "A", "D"}, got.SortedPaths())
}

func TestElide_ParentNonInheritableRangesIgnored(t *testing.T) {
	t.Parallel()

	catalog := Catalog{
		"":  MustParse("/branch:1-10,11*"),
		"A": MustParse("/branch/A:1-10"),
	}

	got := Elide(catalog, nil)

	assert.NotContains(t, got, "A")
}

func TestShouldElide(t *testing.T) {
	t.Parallel()

	assert.True(t, ShouldElide(MergeInfo{}, MergeInfo{}, "x"))
	assert.False(t, ShouldElide(MergeInfo{}, MustParse("/t:1"), "x"))
	assert.False(t, ShouldElide(MustParse("/t:1"), MergeInfo{}, "x"))
	assert.True(t, ShouldElide(MustParse("/t:1-4"), MustParse("/t/x:1-4"), "x"))
	assert.False(t, ShouldElide(MustParse("/t:1-4"), MustParse("/t/x:1-5"), "x"))
}

func TestCatalog_Lifts(t *testing.T) {
	t.Parallel()

	a := Catalog{"": MustParse("/t:1-5"), "A": MustParse("/t/A:2")}
	b := Catalog{"": MustParse("/t:7"), "B": MustParse("/t/B:9")}

	merged := MergeCatalogs(a, b)
	assert.Equal(t, []string{"", "A", "B"}, merged.SortedPaths())
	assert.Equal(t, "/t:1-5,7", merged[""].String())

	intersected := IntersectCatalog(merged, MustParse("/t:3-7"), false)
	assert.Equal(t, []string{""}, intersected.SortedPaths())
	assert.Equal(t, "/t:3-5,7", intersected[""].String())

	filtered := FilterCatalogByRange(merged, 0, vcs.Revnum(5), true)
	assert.Equal(t, []string{"", "A"}, filtered.SortedPaths())
	assert.Equal(t, "/t:1-5", filtered[""].String())
}

func TestCatalog_Prefix(t *testing.T) {
	t.Parallel()

	c := Catalog{"": MustParse("/t:1"), "A/B": MustParse("/t/A/B:2")}

	prefixed := AddPrefix(c, "wc/sub")
	assert.Equal(t, []string{"wc/sub", "wc/sub/A/B"}, prefixed.SortedPaths())

	restored := RemovePrefix(prefixed, "wc/sub")
	assert.Equal(t, []string{"", "A/B"}, restored.SortedPaths())

	assert.Empty(t, RemovePrefix(c, "other"))
}

func TestCatalog_String(t *testing.T) {
	t.Parallel()

	c := Catalog{"": MustParse("/t:1"), "A": MustParse("/t/A:2\n/u:3")}

	assert.Equal(t, ".\n  /t:1\nA\n  /t/A:2\n  /u:3\n", c.String())
}
