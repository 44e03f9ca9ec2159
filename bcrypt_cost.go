//go:build !race

package auth

func defaultBcryptCost() int {
	return 12
}
