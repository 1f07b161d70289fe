package gitlib

import (
	"bytes"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

var (
	// ErrObjectNotFound means the database holds no object with that id.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNotBlob means the id names a tree, commit or tag.
	ErrNotBlob = errors.New("object is not a blob")
	// ErrInvalidHash is returned for malformed object ids.
	ErrInvalidHash = errors.New("invalid object id")
	// ErrClosed is returned once the database has been closed.
	ErrClosed = errors.New("object database is closed")
)

// ObjectDB is the object database of a git repository. It is not safe for
// concurrent use.
type ObjectDB struct {
	repo *git2go.Repository
	odb  *git2go.Odb
	dir  string
}

// OpenObjectDB opens the repository at dir, initializing a bare one when
// nothing is there yet.
func OpenObjectDB(dir string) (*ObjectDB, error) {
	repo, err := git2go.OpenRepository(dir)
	if err != nil {
		repo, err = git2go.InitRepository(dir, true)
		if err != nil {
			return nil, fmt.Errorf("init object database %s: %w", dir, err)
		}
	}

	odb, err := repo.Odb()
	if err != nil {
		repo.Free()

		return nil, fmt.Errorf("open object database %s: %w", dir, err)
	}

	return &ObjectDB{repo: repo, odb: odb, dir: dir}, nil
}

// Dir returns the repository directory.
func (db *ObjectDB) Dir() string {
	return db.dir
}

// Close releases libgit2 handles. Later calls return ErrClosed.
func (db *ObjectDB) Close() {
	if db.odb != nil {
		db.odb.Free()
		db.odb = nil
	}

	if db.repo != nil {
		db.repo.Free()
		db.repo = nil
	}
}

// WriteBlob stores data and returns its blob id. Writing the same bytes
// twice yields the same id.
func (db *ObjectDB) WriteBlob(data []byte) (Hash, error) {
	if db.odb == nil {
		return Hash{}, ErrClosed
	}

	oid, err := db.odb.Write(data, git2go.ObjectBlob)
	if err != nil {
		return Hash{}, fmt.Errorf("write blob: %w", err)
	}

	return hashOf(oid), nil
}

// HasBlob reports whether an object with id h is stored.
func (db *ObjectDB) HasBlob(h Hash) (bool, error) {
	if db.odb == nil {
		return false, ErrClosed
	}

	return db.odb.Exists(h.oid()), nil
}

// ReadBlob returns a copy of the blob contents stored under h.
func (db *ObjectDB) ReadBlob(h Hash) ([]byte, error) {
	if db.odb == nil {
		return nil, ErrClosed
	}

	obj, err := db.odb.Read(h.oid())
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, fmt.Errorf("read blob %s: %w", h, ErrObjectNotFound)
		}

		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	defer obj.Free()

	if obj.Type() != git2go.ObjectBlob {
		return nil, fmt.Errorf("read %s: %w", h, ErrNotBlob)
	}

	return bytes.Clone(obj.Data()), nil
}
