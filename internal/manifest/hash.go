package manifest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/conn-castle/shovel/internal/messages"
)

// Algorithm names a supported content hash.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
)

var hexLengths = map[Algorithm]int{
	SHA256: 64,
	SHA512: 128,
	SHA1:   40,
	MD5:    32,
}

// New returns a fresh hasher for a.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New()
	case SHA1:
		return sha1.New()
	case MD5:
		return md5.New()
	default:
		return sha256.New()
	}
}

// Hash is an expected content hash.
type Hash struct {
	Algorithm Algorithm
	Hex       string
}

// ParseHash parses "[algo:]hex". The algorithm defaults to sha256 and the
// digest is lowercased.
func ParseHash(s string) (Hash, error) {
	value := strings.ToLower(strings.TrimSpace(s))
	algo := SHA256
	if prefix, rest, ok := strings.Cut(value, ":"); ok {
		algo = Algorithm(prefix)
		value = rest
	}
	want, ok := hexLengths[algo]
	if !ok {
		return Hash{}, fmt.Errorf(messages.ManifestHashAlgorithmFmt, string(algo))
	}
	if len(value) != want {
		return Hash{}, fmt.Errorf(messages.ManifestHashLengthFmt, string(algo), want, len(value))
	}
	if _, err := hex.DecodeString(value); err != nil {
		return Hash{}, fmt.Errorf(messages.ManifestHashHexFmt, value)
	}
	return Hash{Algorithm: algo, Hex: value}, nil
}

// String renders h as "algo:hex".
func (h Hash) String() string {
	return string(h.Algorithm) + ":" + h.Hex
}

// Matches reports whether sum, a raw digest, equals h.
func (h Hash) Matches(sum []byte) bool {
	return hex.EncodeToString(sum) == h.Hex
}
