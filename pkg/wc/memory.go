package wc

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

type baseNode struct {
	info   BaseInfo
	props  vcs.Props
	hidden Status
}

type workNode struct {
	kind     vcs.NodeKind
	text     []byte
	props    vcs.Props
	copyFrom *vcs.Location
}

type entry struct {
	base     *baseNode
	work     *workNode
	replaced bool
}

// visibleBase returns the BASE node unless it is recorded as hidden.
func (e *entry) visibleBase() *baseNode {
	if e.base == nil || e.base.hidden.Hidden() {
		return nil
	}

	return e.base
}

func (e *entry) status() Status {
	base := e.visibleBase()

	switch {
	case e.work == nil && e.base != nil && e.base.hidden.Hidden():
		return e.base.hidden
	case base == nil:
		return StatusAdded
	case e.work == nil:
		return StatusDeleted
	case e.replaced:
		return StatusReplaced
	default:
		return StatusNormal
	}
}

// Memory is an in-memory working copy whose BASE texts live in a pristine
// store. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	store pristine.Store
	nodes map[string]*entry
}

// NewMemory creates a working copy rooted at an unversioned directory.
// Populate it with Checkout or SetBase.
func NewMemory(store pristine.Store) *Memory {
	return &Memory{store: store, nodes: make(map[string]*entry)}
}

// Store returns the pristine store holding the BASE texts.
func (m *Memory) Store() pristine.Store {
	return m.store
}

// SetBase records a BASE node and makes its working version identical to it.
// File texts are installed in the pristine store.
func (m *Memory) SetBase(
	ctx context.Context, path string, info BaseInfo, text []byte, props vcs.Props,
) error {
	path = cleanPath(path)

	if info.Kind == vcs.KindFile {
		sum, err := m.store.Install(ctx, text)
		if err != nil {
			return fmt.Errorf("install pristine of '%s': %w", path, err)
		}

		info.Checksum = sum
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	work := &workNode{kind: info.Kind, props: props.Clone()}
	if info.Kind == vcs.KindFile {
		work.text = bytes.Clone(text)
	}

	m.nodes[path] = &entry{
		base: &baseNode{info: info, props: props.Clone()},
		work: work,
	}

	return nil
}

// Exclude removes path and its descendants from the working copy, keeping
// only an excluded marker for path.
func (m *Memory) Exclude(path string) error {
	return m.hide(path, StatusExcluded)
}

// MarkNotPresent records path as absent at the base revision.
func (m *Memory) MarkNotPresent(path string) error {
	return m.hide(path, StatusNotPresent)
}

func (m *Memory) hide(path string, status Status) error {
	path = cleanPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.nodes[path]
	if !ok || e.base == nil {
		return fmt.Errorf("hide '%s': %w", path, ErrNotVersioned)
	}

	for p := range m.nodes {
		if vcs.IsAncestor(path, p) {
			delete(m.nodes, p)
		}
	}

	e.base.hidden = status
	e.work = nil
	e.replaced = false

	return nil
}

// ReadNode implements Reader.
func (m *Memory) ReadNode(ctx context.Context, path string) (Node, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return Node{}, err
	}

	path = cleanPath(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.nodes[path]
	if !ok {
		return Node{}, fmt.Errorf("read '%s': %w", path, ErrNotVersioned)
	}

	node := Node{Path: path, Kind: vcs.KindNone, Status: e.status()}

	if base := e.visibleBase(); base != nil {
		info := base.info
		node.Base = &info
	}

	if e.work != nil {
		node.Kind = e.work.kind

		if e.work.copyFrom != nil {
			origin := *e.work.copyFrom
			node.Origin = &origin
		}
	}

	return node, nil
}

// ReadChildren implements Reader.
func (m *Memory) ReadChildren(ctx context.Context, dir string) ([]string, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	dir = cleanPath(dir)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.nodes[dir]; !ok {
		return nil, fmt.Errorf("read children of '%s': %w", dir, ErrNotVersioned)
	}

	var names []string

	for p := range m.nodes {
		if p != "" && p != dir && vcs.ParentRelpath(p) == dir {
			names = append(names, vcs.BaseName(p))
		}
	}

	slices.Sort(names)

	return names, nil
}

// ReadBaseProps implements Reader.
func (m *Memory) ReadBaseProps(ctx context.Context, path string) (vcs.Props, error) {
	e, err := m.read(ctx, path)
	if err != nil {
		return nil, err
	}

	base := e.visibleBase()
	if base == nil {
		return nil, fmt.Errorf("base props of '%s': %w", path, ErrNotVersioned)
	}

	return base.props.Clone(), nil
}

// ReadProps implements Reader.
func (m *Memory) ReadProps(ctx context.Context, path string) (vcs.Props, error) {
	e, err := m.read(ctx, path)
	if err != nil {
		return nil, err
	}

	if e.work == nil {
		return nil, nil
	}

	return e.work.props.Clone(), nil
}

// TranslatedWorkingFile implements Reader.
func (m *Memory) TranslatedWorkingFile(ctx context.Context, path string) ([]byte, error) {
	e, err := m.read(ctx, path)
	if err != nil {
		return nil, err
	}

	if e.work == nil || e.work.kind != vcs.KindFile {
		return nil, fmt.Errorf("working file '%s': %w", path, ErrNotVersioned)
	}

	return bytes.Clone(e.work.text), nil
}

func (m *Memory) read(ctx context.Context, path string) (*entry, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	path = cleanPath(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.nodes[path]
	if !ok {
		return nil, fmt.Errorf("read '%s': %w", path, ErrNotVersioned)
	}

	return e, nil
}

// WriteFile implements Writer.
func (m *Memory) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	path = cleanPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.nodes[path]
	if !ok || e.work == nil || e.work.kind != vcs.KindFile {
		return fmt.Errorf("write '%s': %w", path, ErrNotVersioned)
	}

	e.work.text = bytes.Clone(content)

	return nil
}

// AddFile implements Writer.
func (m *Memory) AddFile(
	ctx context.Context, path string, content []byte, props vcs.Props, copyFrom *vcs.Location,
) error {
	work := &workNode{kind: vcs.KindFile, text: bytes.Clone(content), props: props.Clone()}

	if copyFrom != nil {
		loc := *copyFrom
		work.copyFrom = &loc
	}

	return m.add(ctx, path, work)
}

// AddDirectory implements Writer.
func (m *Memory) AddDirectory(ctx context.Context, path string, props vcs.Props, copyFrom *vcs.Location) error {
	work := &workNode{kind: vcs.KindDir, props: props.Clone()}

	if copyFrom != nil {
		loc := *copyFrom
		work.copyFrom = &loc
	}

	return m.add(ctx, path, work)
}

func (m *Memory) add(ctx context.Context, path string, work *workNode) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	path = cleanPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if path == "" {
		return fmt.Errorf("add working copy root: %w", ErrObstructed)
	}

	parent, ok := m.nodes[vcs.ParentRelpath(path)]
	if !ok || parent.work == nil || parent.work.kind != vcs.KindDir {
		return fmt.Errorf("add '%s': %w", path, ErrNoParent)
	}

	e, ok := m.nodes[path]
	switch {
	case !ok:
		m.nodes[path] = &entry{work: work}
	case e.work != nil:
		return fmt.Errorf("add '%s': %w", path, ErrObstructed)
	default:
		e.work = work
		e.replaced = e.visibleBase() != nil
	}

	return nil
}

// Delete implements Writer. Locally added nodes below path are forgotten;
// BASE nodes stay recorded as deleted.
func (m *Memory) Delete(ctx context.Context, path string) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	path = cleanPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.nodes[path]; !ok || e.work == nil || path == "" {
		return fmt.Errorf("delete '%s': %w", path, ErrNotVersioned)
	}

	for p, e := range m.nodes {
		if _, below := vcs.SkipAncestor(path, p); !below {
			continue
		}

		e.work = nil
		e.replaced = false

		if e.base == nil {
			delete(m.nodes, p)
		}
	}

	return nil
}

// SetProps implements Writer.
func (m *Memory) SetProps(ctx context.Context, path string, props vcs.Props) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	path = cleanPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.nodes[path]
	if !ok || e.work == nil {
		return fmt.Errorf("set props on '%s': %w", path, ErrNotVersioned)
	}

	e.work.props = props.Clone()

	return nil
}

func cleanPath(p string) string {
	return strings.Trim(p, "/")
}
