// Package proofcode computes the content fingerprints the alipan upload API
// uses for rapid (server-side copy) uploads.
//
// A rapid upload sends three values with the create request. The pre-hash
// is the SHA-1 of the first 1 KiB and lets the server reject a candidate
// cheaply. The content hash is the SHA-1 of the whole file. The proof code
// is an 8-byte window of the content at an offset derived from the access
// token, showing that the client really holds the bytes and not just the
// hash.
package proofcode

import (
	"crypto/md5"  //nolint:gosec // the protocol mandates MD5 for the offset
	"crypto/sha1" //nolint:gosec // the protocol mandates SHA-1 content hashes
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/big"
	"strings"
)

// HashName is the content_hash_name sent alongside ContentHash values.
const HashName = "sha1"

// PreHashSize is the number of leading bytes covered by PreHash.
const PreHashSize = 1024

// windowSize is the length of the proof window.
const windowSize = 8

// offsetHexDigits is how much of the token digest selects the offset.
const offsetHexDigits = 16

// New returns a streaming content hasher. Format its result with Sum.
func New() hash.Hash {
	return sha1.New() //nolint:gosec // protocol hash
}

// Sum formats the digest of h the way the API reports content hashes.
func Sum(h hash.Hash) string {
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// ContentHash returns the uppercase hex SHA-1 of everything read from r and
// the number of bytes read.
func ContentHash(r io.Reader) (string, int64, error) {
	h := New()

	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("proofcode: hashing content: %w", err)
	}

	return Sum(h), n, nil
}

// PreHash returns the uppercase hex SHA-1 of the first PreHashSize bytes of r.
// Shorter inputs are hashed whole.
func PreHash(r io.Reader) (string, error) {
	h := New()

	if _, err := io.CopyN(h, r, PreHashSize); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("proofcode: hashing prefix: %w", err)
	}

	return Sum(h), nil
}

// Offset returns where the proof window starts for a file of the given
// size. The first 16 hex digits of md5(accessToken) are read as an unsigned
// 64-bit integer and reduced modulo size.
func Offset(accessToken string, size int64) int64 {
	if size <= 0 {
		return 0
	}

	sum := md5.Sum([]byte(accessToken)) //nolint:gosec // protocol hash
	digits := hex.EncodeToString(sum[:])[:offsetHexDigits]

	v, _ := new(big.Int).SetString(digits, 16)

	return v.Mod(v, big.NewInt(size)).Int64()
}

// ProofCode returns the base64 proof window of r for accessToken. size is
// the total content length. An empty file has an empty proof.
func ProofCode(accessToken string, r io.ReaderAt, size int64) (string, error) {
	if size <= 0 {
		return "", nil
	}

	off := Offset(accessToken, size)
	n := min(int64(windowSize), size-off)

	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("proofcode: reading proof window at %d: %w", off, err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}
