package vcs

import (
	"maps"
	"slices"
)

// PropMergeInfo is the property that records merge history on a node.
const PropMergeInfo = "svn:mergeinfo"

// Props maps property names to values. Values handed to callers must be
// treated as read-only; use Clone before changing one.
type Props map[string]string

// Clone returns an independent copy.
func (p Props) Clone() Props {
	if p == nil {
		return Props{}
	}

	return maps.Clone(p)
}

// Names returns the property names in sorted order.
func (p Props) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// Get returns a property value and whether it is set.
func (p Props) Get(name string) (string, bool) {
	v, ok := p[name]

	return v, ok
}

// PropChange describes one property edit. A nil Value deletes the property.
type PropChange struct {
	Name  string
	Value *string
}

// IsDelete reports whether the change removes the property.
func (c PropChange) IsDelete() bool {
	return c.Value == nil
}

// StringPtr returns a pointer to s, for building PropChange values.
func StringPtr(s string) *string {
	return &s
}

// DiffProps returns the changes that turn left into right, sorted by name.
func DiffProps(left, right Props) []PropChange {
	var changes []PropChange

	for _, name := range left.Names() {
		rv, ok := right[name]
		if !ok {
			changes = append(changes, PropChange{Name: name})

			continue
		}

		if rv != left[name] {
			changes = append(changes, PropChange{Name: name, Value: StringPtr(rv)})
		}
	}

	for _, name := range right.Names() {
		if _, ok := left[name]; !ok {
			changes = append(changes, PropChange{Name: name, Value: StringPtr(right[name])})
		}
	}

	slices.SortFunc(changes, func(a, b PropChange) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	return changes
}

// ApplyPropChanges returns a copy of base with changes applied.
func ApplyPropChanges(base Props, changes []PropChange) Props {
	out := base.Clone()

	for _, c := range changes {
		if c.Value == nil {
			delete(out, c.Name)
		} else {
			out[c.Name] = *c.Value
		}
	}

	return out
}

// InvertPropChanges returns the changes that turn right back into left.
func InvertPropChanges(left Props, changes []PropChange) []PropChange {
	inverted := make([]PropChange, 0, len(changes))

	for _, c := range changes {
		if old, ok := left[c.Name]; ok {
			inverted = append(inverted, PropChange{Name: c.Name, Value: StringPtr(old)})
		} else {
			inverted = append(inverted, PropChange{Name: c.Name})
		}
	}

	return inverted
}
