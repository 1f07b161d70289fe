package vcs

import (
	"crypto/sha1" //nolint:gosec // content addressing, not security.
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
)

// ChecksumSize is the size of a content checksum in bytes.
const ChecksumSize = sha1.Size

// Checksum addresses pristine content. It is the SHA-1 of the git blob
// encoding of the content, so a git object database stores the same bytes
// under the same key.
type Checksum [ChecksumSize]byte

// ContentChecksum computes the checksum of content.
func ContentChecksum(content []byte) Checksum {
	h := NewChecksumHasher(int64(len(content)))
	_, _ = h.Write(content)

	return SumChecksum(h)
}

// NewChecksumHasher returns a hasher primed with the blob header for size bytes.
// Feed it exactly size bytes of content and finish with SumChecksum.
func NewChecksumHasher(size int64) hash.Hash {
	h := sha1.New() //nolint:gosec // content addressing, not security.
	_, _ = h.Write([]byte("blob " + strconv.FormatInt(size, 10) + "\x00"))

	return h
}

// SumChecksum finishes a hasher created by NewChecksumHasher.
func SumChecksum(h hash.Hash) Checksum {
	var c Checksum

	copy(c[:], h.Sum(nil))

	return c
}

// ParseChecksum decodes the 40-character hex form.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum

	raw, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("parse checksum %q: %w", s, err)
	}

	if len(raw) != ChecksumSize {
		return c, fmt.Errorf("parse checksum %q: %w", s, ErrChecksumLength)
	}

	copy(c[:], raw)

	return c, nil
}

// String returns the hex form.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether the checksum is unset.
func (c Checksum) IsZero() bool {
	return c == Checksum{}
}
