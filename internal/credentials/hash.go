// Package credentials hashes and verifies user passwords.
//
// Hashes are stored as PHC strings so the algorithm and its cost parameters
// travel with each hash, e.g.
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt b64>$<key b64>
//
// Legacy argon2i hashes verify as well and are reported by NeedsRehash.
package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algArgon2id = "argon2id"
	algArgon2i  = "argon2i"

	saltLen = 16
	keyLen  = 32
)

// ErrMalformedHash is returned for stored hashes that cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Params are the argon2 cost parameters used for new hashes.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams matches the RFC 9106 second recommended option.
var DefaultParams = Params{Memory: 64 * 1024, Iterations: 3, Parallelism: 1}

// Hasher produces and checks PHC encoded argon2 hashes.
type Hasher struct {
	params Params
}

// NewHasher returns a Hasher that creates argon2id hashes with params.
func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash returns the PHC string for plain using a fresh random salt.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty password")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, keyLen)
	return encode(phc{
		alg:     algArgon2id,
		version: argon2.Version,
		params:  h.params,
		salt:    salt,
		key:     key,
	}), nil
}

// Verify reports whether plain matches the stored PHC string. The key
// comparison runs in constant time.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	p, err := decode(encoded)
	if err != nil {
		return false, err
	}

	var key []byte
	switch p.alg {
	case algArgon2id:
		key = argon2.IDKey([]byte(plain), p.salt, p.params.Iterations, p.params.Memory, p.params.Parallelism, uint32(len(p.key)))
	case algArgon2i:
		key = argon2.Key([]byte(plain), p.salt, p.params.Iterations, p.params.Memory, p.params.Parallelism, uint32(len(p.key)))
	}
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with a different
// algorithm or weaker parameters than the Hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	p, err := decode(encoded)
	if err != nil {
		return true
	}
	return p.alg != algArgon2id ||
		p.version != argon2.Version ||
		p.params.Memory < h.params.Memory ||
		p.params.Iterations < h.params.Iterations ||
		p.params.Parallelism < h.params.Parallelism
}

type phc struct {
	alg     string
	version int
	params  Params
	salt    []byte
	key     []byte
}

func encode(p phc) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		p.alg, p.version,
		p.params.Memory, p.params.Iterations, p.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

// decode parses "$alg$v=19$m=..,t=..,p=..$salt$key". Salt and key may use
// padded or unpadded standard base64.
func decode(encoded string) (phc, error) {
	var p phc

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, ErrMalformedHash
	}

	p.alg = parts[1]
	if p.alg != algArgon2id && p.alg != algArgon2i {
		return p, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, p.alg)
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return p, ErrMalformedHash
	}
	v, err := strconv.Atoi(version)
	if err != nil || v != argon2.Version {
		return p, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, version)
	}
	p.version = v

	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return p, ErrMalformedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return p, ErrMalformedHash
		}
		switch name {
		case "m":
			p.params.Memory = uint32(n)
		case "t":
			p.params.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return p, ErrMalformedHash
			}
			p.params.Parallelism = uint8(n)
		default:
			return p, ErrMalformedHash
		}
	}
	if p.params.Memory == 0 || p.params.Iterations == 0 || p.params.Parallelism == 0 {
		return p, ErrMalformedHash
	}

	if p.salt, err = decodeB64(parts[4]); err != nil || len(p.salt) == 0 {
		return p, ErrMalformedHash
	}
	if p.key, err = decodeB64(parts[5]); err != nil || len(p.key) == 0 {
		return p, ErrMalformedHash
	}
	return p, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
