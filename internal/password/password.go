// Package password implements the out-of-scope password-hashing backend
// spec.md calls out as an external collaborator for the `crypt()` efun
// (spec.md §1, §6): only the interface is specified there, so this package
// supplies a concrete bcrypt-backed default rather than leaving it a stub,
// following original_source/src/bcrypt.c's own move off crypt(3) DES.
package password

import "golang.org/x/crypto/bcrypt"

// Hasher is the collaborator interface the `crypt` efun depends on.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// BcryptHasher is the default Hasher, wrapping golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a Hasher at bcrypt's default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *BcryptHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
