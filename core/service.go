package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryAuthenticator verifies credentials against bcrypt hashes held in a UserRepository.
type RepositoryAuthenticator struct {
	users   UserRepository
	timeout time.Duration
}

func NewRepositoryAuthenticator(users UserRepository) *RepositoryAuthenticator {
	return &RepositoryAuthenticator{users: users, timeout: 3 * time.Second}
}

// Verify implements Authenticator.
func (s *RepositoryAuthenticator) Verify(ctx context.Context, cred Credential) error {
	if strings.TrimSpace(cred.Username) == "" {
		return ErrUnknownUser
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.users.FindByUsername(ctx, cred.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if len(cred.Secret) == 0 || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), cred.Secret) != nil {
		return ErrInvalidPassword
	}
	return nil
}
