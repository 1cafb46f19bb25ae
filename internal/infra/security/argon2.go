package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/arklim/storefront-auth/internal/core/port"
)

const (
	argon2Variant = "argon2id"
	argon2Version = "v=19"
)

var (
	errInvalidHashFormat = errors.New("argon2: invalid encoded hash format")
	errInvalidConfig     = errors.New("argon2: invalid configuration")
)

// Argon2Cipher implements port.PasswordCipher with Argon2id.
type Argon2Cipher struct {
	params    port.Argon2Params
	dummyHash string
}

// NewArgon2Cipher validates params and prepares a cipher. It also derives a throwaway hash
// with the same cost parameters, used to equalise timing when no stored hash exists.
func NewArgon2Cipher(params port.Argon2Params) (*Argon2Cipher, error) {
	if err := validateArgon2Params(params); err != nil {
		return nil, err
	}

	c := &Argon2Cipher{params: params}

	filler, err := GenerateSecureToken(24)
	if err != nil {
		return nil, fmt.Errorf("argon2: generate dummy secret: %w", err)
	}
	dummy, err := c.Hash(filler)
	if err != nil {
		return nil, err
	}
	c.dummyHash = dummy

	return c, nil
}

// DummyHash returns a well-formed hash no caller knows the plaintext of.
func (c *Argon2Cipher) DummyHash() string {
	return c.dummyHash
}

func validateArgon2Params(cfg port.Argon2Params) error {
	if cfg.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidConfig)
	}
	if cfg.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidConfig)
	}
	if cfg.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidConfig)
	}
	if cfg.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidConfig)
	}
	if cfg.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// Hash generates an Argon2id hash for the provided password.
// Format: argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
func (c *Argon2Cipher) Hash(password string) (string, error) {
	cfg := c.params

	salt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	return strings.Join([]string{
		argon2Variant,
		argon2Version,
		fmt.Sprintf("m=%d,t=%d,p=%d", cfg.Memory, cfg.Iterations, cfg.Parallelism),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	}, "$"), nil
}

// Check compares the provided password against the stored hash in constant time.
// Empty input and malformed hashes report a mismatch.
func (c *Argon2Cipher) Check(password, encoded string) bool {
	if password == "" || encoded == "" {
		return false
	}

	params, salt, expected, err := decodeArgon2Hash(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func decodeArgon2Hash(encoded string) (port.Argon2Params, []byte, []byte, error) {
	if strings.Contains(encoded, "$") {
		return decodeStructuredHash(strings.TrimPrefix(encoded, "$"))
	}

	// Legacy format: salt:hash using default parameters.
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return port.Argon2Params{}, nil, nil, errInvalidHashFormat
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("argon2: decode salt: %w", err)
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("argon2: decode hash: %w", err)
	}
	if len(salt) == 0 || len(hash) == 0 {
		return port.Argon2Params{}, nil, nil, errInvalidHashFormat
	}

	legacy := port.Argon2Params{
		Memory:      64 * 1024,
		Iterations:  1,
		Parallelism: 4,
	}
	return legacy, salt, hash, nil
}

func decodeStructuredHash(encoded string) (port.Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return port.Argon2Params{}, nil, nil, errInvalidHashFormat
	}

	if parts[0] != argon2Variant {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("argon2: unexpected variant %q", parts[0])
	}
	if parts[1] != argon2Version {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("argon2: unsupported version %q", parts[1])
	}

	memory, iterations, parallelism, err := parseArgon2Params(parts[2])
	if err != nil {
		return port.Argon2Params{}, nil, nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("argon2: decode salt: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("argon2: decode hash: %w", err)
	}

	cfg := port.Argon2Params{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: parallelism,
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(hash)),
	}

	if err := validateArgon2Params(cfg); err != nil {
		return port.Argon2Params{}, nil, nil, err
	}

	return cfg, salt, hash, nil
}

func parseArgon2Params(segment string) (uint32, uint32, uint8, error) {
	entries := strings.Split(segment, ",")
	if len(entries) != 3 {
		return 0, 0, 0, errInvalidHashFormat
	}

	var (
		memory      uint32
		iterations  uint32
		parallelism uint8
		err         error
	)

	for _, entry := range entries {
		kv := strings.Split(entry, "=")
		if len(kv) != 2 {
			return 0, 0, 0, errInvalidHashFormat
		}

		switch kv[0] {
		case "m":
			var v uint64
			v, err = strconv.ParseUint(kv[1], 10, 32)
			memory = uint32(v)
		case "t":
			var v uint64
			v, err = strconv.ParseUint(kv[1], 10, 32)
			iterations = uint32(v)
		case "p":
			var v uint64
			v, err = strconv.ParseUint(kv[1], 10, 8)
			parallelism = uint8(v)
		default:
			return 0, 0, 0, errInvalidHashFormat
		}

		if err != nil {
			return 0, 0, 0, fmt.Errorf("argon2: parse %s: %w", kv[0], err)
		}
	}

	return memory, iterations, parallelism, nil
}

var _ port.PasswordCipher = (*Argon2Cipher)(nil)
