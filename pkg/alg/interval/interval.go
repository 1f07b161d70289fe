// Package interval provides an augmented interval tree over ordered keys.
// It answers "which stored intervals contain this point" and "which overlap
// this range" in O(log N + k), which is how a node's line of history is
// searched for the path it occupied at a given revision.
//
// The tree is a red-black tree where each node stores the maximum right
// endpoint (maxHigh) in its subtree, so overlap queries prune whole subtrees.
// Intervals are append-only: history segments never disappear.
package interval

import "cmp"

// Interval is a closed range [Low, High] with an associated Value.
type Interval[K cmp.Ordered, V any] struct {
	Low   K
	High  K
	Value V
}

// Contains reports whether point lies inside the interval.
func (iv Interval[K, V]) Contains(point K) bool {
	return iv.Low <= point && point <= iv.High
}

// Tree is an augmented interval tree. It is not safe for concurrent
// mutation; concurrent queries on a tree that is no longer modified are fine.
type Tree[K cmp.Ordered, V any] struct {
	root *node[K, V]
	size int
}

type node[K cmp.Ordered, V any] struct {
	interval    Interval[K, V]
	maxHigh     K
	left, right *node[K, V]
	parent      *node[K, V]
	red         bool
}

// New creates an empty tree.
func New[K cmp.Ordered, V any]() *Tree[K, V] {
	return &Tree[K, V]{}
}

// Len returns the number of stored intervals.
func (t *Tree[K, V]) Len() int {
	return t.size
}

// Clear removes every interval.
func (t *Tree[K, V]) Clear() {
	t.root = nil
	t.size = 0
}

// Insert adds [low, high] with value. Intervals with low > high are swapped.
func (t *Tree[K, V]) Insert(low, high K, value V) {
	if low > high {
		low, high = high, low
	}

	n := &node[K, V]{
		interval: Interval[K, V]{Low: low, High: high, Value: value},
		maxHigh:  high,
		red:      true,
	}

	t.bstInsert(n)
	t.insertFixup(n)
	t.size++
}

// QueryOverlap returns the intervals overlapping [low, high], ordered by Low.
func (t *Tree[K, V]) QueryOverlap(low, high K) []Interval[K, V] {
	if t.root == nil {
		return nil
	}

	var results []Interval[K, V]

	collectOverlap(t.root, low, high, &results)

	return results
}

// QueryPoint returns the intervals containing point, ordered by Low.
func (t *Tree[K, V]) QueryPoint(point K) []Interval[K, V] {
	return t.QueryOverlap(point, point)
}

// All returns every interval ordered by Low, then High.
func (t *Tree[K, V]) All() []Interval[K, V] {
	out := make([]Interval[K, V], 0, t.size)

	var walk func(n *node[K, V])

	walk = func(n *node[K, V]) {
		if n == nil {
			return
		}

		walk(n.left)
		out = append(out, n.interval)
		walk(n.right)
	}

	walk(t.root)

	return out
}

func (t *Tree[K, V]) bstInsert(n *node[K, V]) {
	if t.root == nil {
		t.root = n

		return
	}

	current := t.root

	for {
		current.maxHigh = max(current.maxHigh, n.interval.High)

		if compareIntervals(n.interval, current.interval) < 0 {
			if current.left == nil {
				current.left = n
				n.parent = current

				return
			}

			current = current.left
		} else {
			if current.right == nil {
				current.right = n
				n.parent = current

				return
			}

			current = current.right
		}
	}
}

func (t *Tree[K, V]) insertFixup(n *node[K, V]) {
	for n != t.root && isRed(n.parent) {
		parent := n.parent

		grandparent := parent.parent
		if grandparent == nil {
			break
		}

		leftCase := parent == grandparent.left
		uncle := childOf(grandparent, !leftCase)

		if isRed(uncle) {
			parent.red = false
			uncle.red = false
			grandparent.red = true
			n = grandparent

			continue
		}

		// Inner child: rotate it to the outside first.
		if n == childOf(parent, !leftCase) {
			t.rotate(parent, leftCase)
			n, parent = parent, n
		}

		parent.red = false
		grandparent.red = true
		t.rotate(grandparent, !leftCase)
	}

	t.root.red = false
}

// rotate rotates left at n when left is true, right otherwise, keeping maxHigh.
func (t *Tree[K, V]) rotate(n *node[K, V], left bool) {
	var pivot *node[K, V]

	if left {
		pivot = n.right
		n.right = pivot.left

		if pivot.left != nil {
			pivot.left.parent = n
		}

		pivot.left = n
	} else {
		pivot = n.left
		n.left = pivot.right

		if pivot.right != nil {
			pivot.right.parent = n
		}

		pivot.right = n
	}

	pivot.parent = n.parent

	switch {
	case n.parent == nil:
		t.root = pivot
	case n == n.parent.left:
		n.parent.left = pivot
	default:
		n.parent.right = pivot
	}

	n.parent = pivot

	recalcMaxHigh(n)
	recalcMaxHigh(pivot)
}

func collectOverlap[K cmp.Ordered, V any](n *node[K, V], low, high K, results *[]Interval[K, V]) {
	if n == nil || n.maxHigh < low {
		return
	}

	collectOverlap(n.left, low, high, results)

	if n.interval.Low <= high && n.interval.High >= low {
		*results = append(*results, n.interval)
	}

	// Everything to the right starts after n, so nothing there can overlap.
	if n.interval.Low > high {
		return
	}

	collectOverlap(n.right, low, high, results)
}

func compareIntervals[K cmp.Ordered, V any](a, b Interval[K, V]) int {
	if c := cmp.Compare(a.Low, b.Low); c != 0 {
		return c
	}

	return cmp.Compare(a.High, b.High)
}

func isRed[K cmp.Ordered, V any](n *node[K, V]) bool {
	return n != nil && n.red
}

func childOf[K cmp.Ordered, V any](n *node[K, V], left bool) *node[K, V] {
	if n == nil {
		return nil
	}

	if left {
		return n.left
	}

	return n.right
}

func recalcMaxHigh[K cmp.Ordered, V any](n *node[K, V]) {
	m := n.interval.High

	if n.left != nil {
		m = max(m, n.left.maxHigh)
	}

	if n.right != nil {
		m = max(m, n.right.maxHigh)
	}

	n.maxHigh = m
}
