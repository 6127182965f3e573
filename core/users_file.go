package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// usersFile is the on-disk shape of a users file:
//
//	users:
//	  - username: doej
//	    password_hash: $2a$10$...
type usersFile struct {
	Users []struct {
		Username     string `yaml:"username"`
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"users"`
}

// StaticUserRepository is an in-memory UserRepository, optionally seeded from a YAML users file.
type StaticUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]UserRecord
}

func NewStaticUserRepository() *StaticUserRepository {
	return &StaticUserRepository{users: make(map[string]UserRecord)}
}

// LoadUsersFile reads a YAML users file into a StaticUserRepository.
func LoadUsersFile(path string) (*StaticUserRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file %s: %w", path, err)
	}
	return ParseUsers(data)
}

// ParseUsers decodes users file content.
func ParseUsers(data []byte) (*StaticUserRepository, error) {
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	repo := NewStaticUserRepository()
	for i, u := range f.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("users[%d]: username and password_hash are required", i)
		}
		if _, err := repo.Create(context.Background(), name, u.PasswordHash); err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}
	}
	return repo, nil
}

func (r *StaticUserRepository) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *StaticUserRepository) Create(_ context.Context, username, passwordHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; ok {
		return 0, fmt.Errorf("user %q already exists", username)
	}
	r.nextID++
	r.users[username] = UserRecord{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	return r.nextID, nil
}

func (r *StaticUserRepository) HasUsers(context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users) > 0, nil
}
