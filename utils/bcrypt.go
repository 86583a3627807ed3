package utils

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor. Tests may lower it to bcrypt.MinCost.
var PasswordCost = bcrypt.DefaultCost

const MinPasswordLength = 8

var ErrPasswordTooShort = InvalidInput("password must be at least 8 characters")

func HashPassword(s string) ([]byte, error) {
	if len(s) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	return bcrypt.GenerateFromPassword([]byte(s), PasswordCost)
}

// ComparePassword returns ErrorUnauthorized when normal does not match hashed.
func ComparePassword(hashed string, normal string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal)); err != nil {
		return ErrorUnauthorized
	}
	return nil
}
