// Package pristine holds the content-addressed store of pristine file texts:
// the unmodified BASE content a working copy compares local edits against.
// Content is addressed by vcs.Checksum, and every read through ReadVerified
// is re-hashed so corrupted pristines are detected instead of diffed.
package pristine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// ErrNotFound means the store has no content for the checksum.
var ErrNotFound = errors.New("pristine text not found")

// Store is a content-addressed pristine text store.
type Store interface {
	// Open returns a reader for the content stored under checksum, or an
	// error wrapping ErrNotFound.
	Open(ctx context.Context, checksum vcs.Checksum) (io.ReadCloser, error)
	// Install stores content and returns its checksum.
	Install(ctx context.Context, content []byte) (vcs.Checksum, error)
	// Has reports whether content is stored under checksum.
	Has(ctx context.Context, checksum vcs.Checksum) (bool, error)
}

// ReadVerified reads the pristine text for path and checks it against
// checksum. Missing content is reported as vcs.ErrCorruptMetadata, since the
// metadata claimed the text exists; content that hashes differently is a
// *vcs.ChecksumMismatchError.
func ReadVerified(ctx context.Context, store Store, path string, checksum vcs.Checksum) ([]byte, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	rc, err := store.Open(ctx, checksum)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: pristine %s of '%s' is missing", vcs.ErrCorruptMetadata, checksum, path)
		}

		return nil, fmt.Errorf("open pristine of '%s': %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(NewVerifyingReader(rc, path, checksum))
	if err != nil {
		return nil, err
	}

	return data, nil
}
