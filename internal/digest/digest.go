// Package digest computes the 32-byte BLAKE3 content digests used to identify
// file contents and to validate HTTP caches.
package digest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Size is the length of a digest in bytes
const Size = 32

var (
	ErrInvalidDigest = errors.New("invalid digest")
)

// Digest is a strong hash of file content. Equal digests mean equal content.
type Digest [Size]byte

// FromBytes copies a raw digest, rejecting anything that isn't exactly Size bytes long
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidDigest, Size, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Parse decodes an unpadded base64url digest.
// Padded and standard-alphabet encodings are accepted as well.
func Parse(s string) (Digest, error) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	}
	for _, enc := range encodings {
		if raw, err := enc.DecodeString(s); err == nil {
			return FromBytes(raw)
		}
	}
	return Digest{}, fmt.Errorf("%w: %q is not base64", ErrInvalidDigest, s)
}

// String returns the unpadded base64url encoding
func (d Digest) String() string {
	return base64.RawURLEncoding.EncodeToString(d[:])
}

// ETag returns the digest as a quoted entity tag
func (d Digest) ETag() string {
	return `"` + d.String() + `"`
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ===================================================================================================

// Hasher incrementally computes a Digest. How the input is split across
// Write calls does not affect the result.
type Hasher struct {
	h *blake3.Hasher
}

func New() *Hasher {
	return &Hasher{h: blake3.New()}
}

// Write never returns an error
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the digest of everything written so far without resetting the state
func (h *Hasher) Sum() Digest {
	var d Digest
	h.h.Sum(d[:0])
	return d
}

func (h *Hasher) Reset() {
	h.h.Reset()
}

// Sum returns the digest of b
func Sum(b []byte) Digest {
	return blake3.Sum256(b)
}

// SumReader hashes r until EOF and returns the digest and the number of bytes read
func SumReader(r io.Reader) (Digest, int64, error) {
	h := New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, n, err
	}
	return h.Sum(), n, nil
}
