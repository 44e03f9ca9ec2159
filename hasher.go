package auth

import "strings"

const (
	HashAlgorithmBcrypt   = "bcrypt"
	HashAlgorithmArgon2id = "argon2id"
)

// NewPasswordHasher returns the hasher for algorithm. For bcrypt, cost is the
// work factor; it is ignored for argon2id. Unknown names fall back to bcrypt.
func NewPasswordHasher(algorithm string, cost int) PasswordHasher {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case HashAlgorithmArgon2id:
		return NewArgon2Hasher(DefaultArgon2Params())
	default:
		return NewBcryptHasher(cost)
	}
}
