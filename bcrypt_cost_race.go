//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// cost 12 under the race detector makes every login take seconds
func defaultBcryptCost() int {
	return bcrypt.DefaultCost
}
