// Package gitlib exposes a libgit2 object database as a content-addressed
// blob store. A git blob id is the SHA-1 used elsewhere as a text checksum,
// so only blob reads and writes are wrapped.
package gitlib

import (
	"encoding/hex"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Hash is a 20 byte git object id.
type Hash [20]byte

// ParseHash decodes a 40 character hex object id.
func ParseHash(s string) (Hash, error) {
	var h Hash

	if hex.DecodedLen(len(s)) != len(h) {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero id.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) oid() *git2go.Oid {
	o := git2go.Oid(h)

	return &o
}

func hashOf(o *git2go.Oid) Hash {
	return Hash(*o)
}
