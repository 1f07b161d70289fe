package pristine

import (
	"hash"
	"io"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// VerifyingReader buffers what it reads and, at EOF, checks that the content
// hashes to the expected checksum. A mismatch replaces io.EOF with a
// *vcs.ChecksumMismatchError.
type VerifyingReader struct {
	src      io.Reader
	path     string
	expected vcs.Checksum
	buf      []byte
	done     bool
}

// NewVerifyingReader wraps src.
func NewVerifyingReader(src io.Reader, path string, expected vcs.Checksum) *VerifyingReader {
	return &VerifyingReader{src: src, path: path, expected: expected}
}

// Read implements io.Reader.
func (v *VerifyingReader) Read(p []byte) (int, error) {
	if v.done {
		return 0, io.EOF
	}

	n, err := v.src.Read(p)
	v.buf = append(v.buf, p[:n]...)

	if err == io.EOF {
		v.done = true

		if actual := vcs.SumChecksum(v.hasher()); actual != v.expected {
			return n, vcs.NewChecksumMismatchError(v.path, v.expected, actual)
		}
	}

	return n, err //nolint:wrapcheck // io.Reader contract returns io.EOF unwrapped.
}

// The blob header needs the total size, so hashing waits for EOF.
func (v *VerifyingReader) hasher() hash.Hash {
	h := vcs.NewChecksumHasher(int64(len(v.buf)))
	_, _ = h.Write(v.buf)

	return h
}
