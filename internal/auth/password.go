// Package auth provides password hashing for stored credentials.
package auth

import "golang.org/x/crypto/bcrypt"

// hashCost keeps verification around the hundred-millisecond mark on
// current commodity hardware.
const hashCost = 10

// HashPassword hashes a plaintext password with a per-record random salt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(password, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
