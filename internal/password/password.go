// Package password provides the one-way hashing used for per-post passwords.
package password

import "golang.org/x/crypto/bcrypt"

const bcryptCost = 10

// Hash derives a salted one-way hash from a plaintext password. Two calls
// with the same input produce different tokens.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches a hash produced by Hash. A mismatch is
// an ordinary false, not an error.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
