// Package directory provides a static, file-backed user directory. It stands
// in for the identity provider's user listing until a live sync exists.
package directory

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/greenroomhq/greenroom/model"
)

// Static is an in-memory directory built from a fixed user list. It is
// immutable after construction and safe for concurrent use.
type Static struct {
	byID  map[string]model.User
	users []model.User
}

// NewStatic creates a directory from the given users. Later entries with a
// duplicate ID replace earlier ones.
func NewStatic(users []model.User) *Static {
	byID := make(map[string]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]model.User, 0, len(byID))
	for _, u := range byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return &Static{byID: byID, users: out}
}

type userFile struct {
	Users []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
		Role  string `yaml:"role"`
	} `yaml:"users"`
}

// LoadFile reads a YAML user list and builds a directory from it. Entries
// with a missing ID or an unknown role fail the load.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read %s: %w", path, err)
	}

	var f userFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("directory: parse %s: %w", path, err)
	}

	users := make([]model.User, 0, len(f.Users))
	for i, u := range f.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("directory: user %d in %s has no id", i, path)
		}
		role, ok := model.ParseRole(u.Role)
		if !ok {
			return nil, fmt.Errorf("directory: user %s has unknown role %q", u.ID, u.Role)
		}
		users = append(users, model.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: role})
	}
	return NewStatic(users), nil
}

// Lookup implements model.Directory.
func (s *Static) Lookup(userID string) (model.User, error) {
	u, ok := s.byID[userID]
	if !ok {
		return model.User{}, model.NewNotFoundError(fmt.Sprintf("user %s not found", userID))
	}
	return u, nil
}

// UsersWithRoles implements model.Directory. Results are ordered by ID.
func (s *Static) UsersWithRoles(roles model.RoleSet) ([]model.User, error) {
	out := make([]model.User, 0)
	for _, u := range s.users {
		if roles.Has(u.Role) {
			out = append(out, u)
		}
	}
	return out, nil
}
