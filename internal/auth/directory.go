package auth

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is a staff account the login endpoint resolves credentials against.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         string
}

// Directory resolves a username to an account. Identity management proper is
// an external collaborator; this static directory backs dev and single-site
// deployments.
type Directory interface {
	Lookup(username string) (User, bool)
}

// StaticDirectory is an immutable in-memory Directory.
type StaticDirectory struct {
	users map[string]User
}

// NewStaticDirectory builds a directory from the given accounts.
func NewStaticDirectory(users []User) *StaticDirectory {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.Username] = u
	}
	return &StaticDirectory{users: m}
}

func (d *StaticDirectory) Lookup(username string) (User, bool) {
	u, ok := d.users[username]
	return u, ok
}

// HashPassword bcrypt-hashes a plaintext password for seeding.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash against a plaintext candidate.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
