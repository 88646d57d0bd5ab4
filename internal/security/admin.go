package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when a login attempt does not match the
// configured admin principal. Callers must not distinguish a wrong name
// from a wrong password.
var ErrBadCredentials = errors.New("bad credentials")

// Admin is the single administrative principal, loaded from config. The
// password is only ever held as a bcrypt hash.
type Admin struct {
	Name         string
	PasswordHash string
}

// Authenticate verifies name and password against the configured admin
// and returns the admin name to record as the owner of audited actions.
func (a Admin) Authenticate(name, password string) (string, error) {
	if name != a.Name {
		// Burn a compare anyway so the response time does not reveal
		// whether the name exists.
		_ = bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return a.Name, nil
}

// HashPassword produces a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
