package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
	argon2Prefix  = "$argon2id$"
)

// HashParams are the argon2id cost parameters used for new hashes.
type HashParams struct {
	MemoryKiB  uint32
	Iterations uint32
	Threads    uint8
}

// Bounds on argon2 parameters, applied to the configured params and to
// params decoded from stored hashes.
const (
	MaxArgon2MemoryKiB  = 1 << 20
	MaxArgon2Iterations = 64
)

// ErrInvalidHashParams is returned for params outside the accepted bounds.
var ErrInvalidHashParams = errors.New("argon2 parameters out of range")

// Validate reports whether p is within bounds, so hashes made with p can be
// decoded and verified again.
func (p HashParams) Validate() error {
	switch {
	case p.Threads == 0:
		return fmt.Errorf("%w: threads must be positive", ErrInvalidHashParams)
	case p.Iterations == 0 || p.Iterations > MaxArgon2Iterations:
		return fmt.Errorf("%w: iterations %d not in 1..%d", ErrInvalidHashParams, p.Iterations, MaxArgon2Iterations)
	case p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > MaxArgon2MemoryKiB:
		return fmt.Errorf("%w: memory %d KiB not in %d..%d", ErrInvalidHashParams, p.MemoryKiB, 8*uint32(p.Threads), MaxArgon2MemoryKiB)
	}
	return nil
}

// PasswordHasher hashes and verifies user secrets.
type PasswordHasher interface {
	// Hash returns a self-describing encoded hash with a fresh random salt.
	Hash(ctx context.Context, password string) (string, error)
	// Verify reports whether password matches encoded. A malformed encoded
	// value yields false. The error is non-nil only when ctx ends first.
	Verify(ctx context.Context, password, encoded string) (bool, error)
	// NeedsRehash reports whether encoded was produced with a legacy
	// algorithm or weaker parameters than the hasher currently uses.
	NeedsRehash(encoded string) bool
}

// Argon2Hasher implements PasswordHasher with argon2id. It also verifies
// legacy bcrypt hashes so they can be upgraded on the next sign-in.
type Argon2Hasher struct {
	params HashParams
	slots  *semaphore.Weighted
	// dummy is verified against when the stored hash is absent or malformed
	// so the caller observes the same amount of work.
	dummy decodedHash
}

// NewArgon2Hasher builds a hasher that runs at most maxConcurrent argon2
// evaluations at once; each one holds MemoryKiB of memory.
func NewArgon2Hasher(params HashParams, maxConcurrent int) (*Argon2Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Argon2Hasher{
		params: params,
		slots:  semaphore.NewWeighted(int64(maxConcurrent)),
		dummy: decodedHash{
			params: params,
			salt:   make([]byte, argon2SaltLen),
			key:    make([]byte, argon2KeyLen),
		},
	}, nil
}

// Hash produces an argon2id hash of the password in PHC string format.
func (h *Argon2Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key, err := h.derive(ctx, password, salt, h.params, argon2KeyLen)
	if err != nil {
		return "", err
	}

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an argon2id or bcrypt hash.
func (h *Argon2Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		if err := h.slots.Acquire(ctx, 1); err != nil {
			return false, err
		}
		defer h.slots.Release(1)
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil, nil
	}

	decoded, err := decodeArgon2(encoded)
	if err != nil {
		if _, err := h.derive(ctx, password, h.dummy.salt, h.dummy.params, argon2KeyLen); err != nil {
			return false, err
		}
		return false, nil
	}

	computed, err := h.derive(ctx, password, decoded.salt, decoded.params, uint32(len(decoded.key)))
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// NeedsRehash returns true for bcrypt hashes and for argon2id hashes whose
// parameters are below the configured ones.
func (h *Argon2Hasher) NeedsRehash(encoded string) bool {
	decoded, err := decodeArgon2(encoded)
	if err != nil {
		return true
	}
	p := decoded.params
	return p.MemoryKiB < h.params.MemoryKiB ||
		p.Iterations < h.params.Iterations ||
		p.Threads < h.params.Threads
}

func (h *Argon2Hasher) derive(ctx context.Context, password string, salt []byte, p HashParams, keyLen uint32) ([]byte, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.slots.Release(1)
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Threads, keyLen), nil
}

type decodedHash struct {
	params HashParams
	salt   []byte
	key    []byte
}

func decodeArgon2(encoded string) (decodedHash, error) {
	var d decodedHash
	if !strings.HasPrefix(encoded, argon2Prefix) {
		return d, fmt.Errorf("unsupported hash algorithm")
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return d, fmt.Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return d, err
	}
	if version != argon2.Version {
		return d, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return d, err
	}
	if threads == 0 || threads > 255 {
		return d, fmt.Errorf("threads value %d out of range", threads)
	}
	params := HashParams{MemoryKiB: memory, Iterations: iterations, Threads: uint8(threads)}
	// A corrupted row must not make verification allocate without bound.
	if err := params.Validate(); err != nil {
		return d, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return d, err
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return d, err
	}
	if len(salt) == 0 || len(key) == 0 || len(key) > 1024 {
		return d, fmt.Errorf("invalid salt or key length")
	}

	d.params = params
	d.salt = salt
	d.key = key
	return d, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
