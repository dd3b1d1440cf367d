package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Grant is the result of a successful login: who the user is and which
// store identifiers they may query.
type Grant struct {
	Username string
	Role     string
	Stores   []string
}

// Authorizer supplies the set of permitted store identifiers for a
// credential pair. The counting core never sees credentials; it trusts the
// storeIDs the transport passes it.
type Authorizer interface {
	Authenticate(username, password string) (*Grant, error)
}

// User is one entry of the static credential table.
type User struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
	Stores   []string `json:"stores"`
}

// StaticAuthorizer authenticates against an in-memory user table loaded at
// startup.
type StaticAuthorizer struct {
	users map[string]User
}

// NewStaticAuthorizer builds an authorizer from a user list.
func NewStaticAuthorizer(users []User) *StaticAuthorizer {
	table := make(map[string]User, len(users))
	for _, u := range users {
		table[u.Username] = u
	}
	return &StaticAuthorizer{users: table}
}

// Authenticate checks the credential pair against the table.
func (a *StaticAuthorizer) Authenticate(username, password string) (*Grant, error) {
	user, ok := a.users[username]
	if !ok || user.Password != password {
		return nil, ErrInvalidCredentials
	}

	stores := make([]string, len(user.Stores))
	copy(stores, user.Stores)

	return &Grant{
		Username: user.Username,
		Role:     user.Role,
		Stores:   stores,
	}, nil
}

// LoadUsersFile reads the static user table from a JSON file.
func LoadUsersFile(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}
	return users, nil
}
