package diff

import "context"

// Callback receives the nodes of a comparison. Every reported node gets an
// Opened call followed by exactly one of Added, Deleted, Changed or Closed
// (unchanged), unless the Opened call asked to skip it. A directory is
// opened before its children and finished after them.
type Callback interface {
	DirOpened(ctx context.Context, ev *DirEvent) (Result, error)
	DirAdded(ctx context.Context, ev *DirEvent) error
	DirDeleted(ctx context.Context, ev *DirEvent) error
	DirChanged(ctx context.Context, ev *DirEvent) error
	DirClosed(ctx context.Context, ev *DirEvent) error

	FileOpened(ctx context.Context, ev *FileEvent) (Result, error)
	FileAdded(ctx context.Context, ev *FileEvent) error
	FileDeleted(ctx context.Context, ev *FileEvent) error
	FileChanged(ctx context.Context, ev *FileEvent) error
	FileClosed(ctx context.Context, ev *FileEvent) error

	// NodeAbsent reports a node the repository withheld.
	NodeAbsent(ctx context.Context, path string) error
}

// Base implements Callback with no-ops. Embed it to handle only some events.
type Base struct{}

var _ Callback = Base{}

// DirOpened implements Callback.
func (Base) DirOpened(context.Context, *DirEvent) (Result, error) { return Result{}, nil }

// DirAdded implements Callback.
func (Base) DirAdded(context.Context, *DirEvent) error { return nil }

// DirDeleted implements Callback.
func (Base) DirDeleted(context.Context, *DirEvent) error { return nil }

// DirChanged implements Callback.
func (Base) DirChanged(context.Context, *DirEvent) error { return nil }

// DirClosed implements Callback.
func (Base) DirClosed(context.Context, *DirEvent) error { return nil }

// FileOpened implements Callback.
func (Base) FileOpened(context.Context, *FileEvent) (Result, error) { return Result{}, nil }

// FileAdded implements Callback.
func (Base) FileAdded(context.Context, *FileEvent) error { return nil }

// FileDeleted implements Callback.
func (Base) FileDeleted(context.Context, *FileEvent) error { return nil }

// FileChanged implements Callback.
func (Base) FileChanged(context.Context, *FileEvent) error { return nil }

// FileClosed implements Callback.
func (Base) FileClosed(context.Context, *FileEvent) error { return nil }

// NodeAbsent implements Callback.
func (Base) NodeAbsent(context.Context, string) error { return nil }
