package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// bcryptSHA256Prefix tags hashes whose input was pre-hashed. The remainder
// of the string is a regular bcrypt hash.
const bcryptSHA256Prefix = "$bcrypt-sha256$"

// bcrypt ignores everything after the 72nd byte
const bcryptMaxInput = 72

var bcryptPrehashKey = []byte("go-auth-gate/bcrypt-sha256")

// BcryptHasher hashes passwords with bcrypt. Passwords are first reduced to a
// base64 HMAC-SHA256 digest so input of any length is accepted and every byte
// takes part in the hash. The output embeds cost and salt so Verify needs
// nothing but the stored string.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher for the given cost. Values outside the
// bcrypt range fall back to the package default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultBcryptCost()
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the work factor used for new hashes
func (b *BcryptHasher) Cost() int {
	return b.cost
}

// Hash will generate a password hash
func (b *BcryptHasher) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prehashPassword(password), b.cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return bcryptSHA256Prefix + string(h), nil
}

// Verify reports whether password matches hash. Hashes produced by other
// supported algorithms are verified as well.
func (b *BcryptHasher) Verify(password, hash string) bool {
	return verifyAny(password, hash)
}

// HashPassword will generate a password hash using bcrypt and the default cost
func HashPassword(password string) (string, error) {
	return NewBcryptHasher(defaultBcryptCost()).Hash(password)
}

// VerifyPassword reports whether the cleartext password matches the hash
func VerifyPassword(password, hash string) bool {
	return verifyAny(password, hash)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if isArgon2Hash(hash) {
		if verifyArgon2(password, hash) {
			return nil
		}
		return ErrMismatchedHashAndPassword
	}

	if err := compareBcrypt(password, hash); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid password hash")
	}
	return nil
}

func prehashPassword(password string) []byte {
	mac := hmac.New(sha256.New, bcryptPrehashKey)
	mac.Write([]byte(password))
	sum := mac.Sum(nil)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}

// compareBcrypt checks tagged hashes against the pre-hashed password and
// plain bcrypt hashes against the raw password. Plain hashes never match a
// password bcrypt would have truncated.
func compareBcrypt(password, hash string) error {
	if rest, ok := strings.CutPrefix(hash, bcryptSHA256Prefix); ok {
		return bcrypt.CompareHashAndPassword([]byte(rest), prehashPassword(password))
	}

	if !isPlainBcryptHash(hash) {
		return bcrypt.ErrHashTooShort
	}

	if len(password) > bcryptMaxInput {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func isPlainBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, bcryptSHA256Prefix) || isPlainBcryptHash(hash)
}

func verifyAny(password, hash string) bool {
	switch {
	case isArgon2Hash(hash):
		return verifyArgon2(password, hash)
	case isBcryptHash(hash):
		return compareBcrypt(password, hash) == nil
	default:
		return false
	}
}
