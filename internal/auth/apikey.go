package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	apiKeyHashIterations = 120000
	apiKeyHashSaltLength = 16
	apiKeyHashKeyLength  = 32
)

// Keyring validates API keys presented on the mobile upload surface. Keys may
// be configured as plaintext values or as pbkdf2 entries produced by the
// hash-api-key tool, which keeps the plaintext out of unit files and shell
// history.
type Keyring struct {
	digests [][]byte
	hashed  []hashedKey
}

type hashedKey struct {
	iterations int
	salt       []byte
	digest     []byte
}

// NewKeyring builds a keyring from plaintext keys and hashed key-file
// entries. At least one key must survive trimming.
func NewKeyring(keys []string, hashedEntries []string) (*Keyring, error) {
	ring := &Keyring{}
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		sum := sha256.Sum256([]byte(trimmed))
		ring.digests = append(ring.digests, sum[:])
	}
	for index, entry := range hashedEntries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		parsed, err := parseHashedKey(trimmed)
		if err != nil {
			return nil, fmt.Errorf("api key entry %d: %w", index+1, err)
		}
		ring.hashed = append(ring.hashed, parsed)
	}
	if len(ring.digests) == 0 && len(ring.hashed) == 0 {
		return nil, errors.New("at least one api key is required")
	}
	return ring, nil
}

// Verify reports whether the candidate matches any configured key. Every
// configured entry is checked so timing does not reveal which key matched,
// and all comparisons run over fixed-length derived digests.
func (k *Keyring) Verify(candidate string) bool {
	if k == nil || candidate == "" {
		return false
	}
	sum := sha256.Sum256([]byte(candidate))
	matched := false
	for _, digest := range k.digests {
		if subtle.ConstantTimeCompare(sum[:], digest) == 1 {
			matched = true
		}
	}
	for _, entry := range k.hashed {
		derived := pbkdf2.Key([]byte(candidate), entry.salt, entry.iterations, len(entry.digest), sha256.New)
		if subtle.ConstantTimeCompare(derived, entry.digest) == 1 {
			matched = true
		}
	}
	return matched
}

// Size reports how many keys the ring holds.
func (k *Keyring) Size() int {
	if k == nil {
		return 0
	}
	return len(k.digests) + len(k.hashed)
}

// HashAPIKey derives a storable pbkdf2 entry for the provided key.
func HashAPIKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("api key is required")
	}
	salt := make([]byte, apiKeyHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(key), salt, apiKeyHashIterations, apiKeyHashKeyLength, sha256.New)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s",
		apiKeyHashIterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived)), nil
}

// GenerateAPIKey returns a fresh random key suitable for distribution to a
// mobile build.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ParseKeyFile splits key-file contents into entries, dropping blank lines
// and # comments.
func ParseKeyFile(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		entries = append(entries, trimmed)
	}
	return entries
}

func parseHashedKey(entry string) (hashedKey, error) {
	parts := strings.Split(entry, "$")
	if len(parts) != 5 || parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return hashedKey{}, errors.New("unsupported api key hash format")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return hashedKey{}, errors.New("invalid api key hash iterations")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return hashedKey{}, fmt.Errorf("decode api key hash salt: %w", err)
	}
	digest, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return hashedKey{}, fmt.Errorf("decode api key hash digest: %w", err)
	}
	if len(digest) == 0 {
		return hashedKey{}, errors.New("api key hash digest is empty")
	}
	return hashedKey{iterations: iterations, salt: salt, digest: digest}, nil
}
