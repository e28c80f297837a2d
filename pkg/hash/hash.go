package hash

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var placeholder = sync.OnceValue(func() string {
	h, _ := HashPassword("placeholder-password")
	return h
})

func HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckMissing spends the same bcrypt work as CheckPassword when there is no
// stored hash to compare with. It always reports false.
func CheckMissing(password string) bool {
	_ = CheckPassword(placeholder(), password)
	return false
}
