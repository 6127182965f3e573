package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	bootstrapUsername       = "admin"
	bootstrapPasswordLength = 32
)

// BootstrapAdmin seeds an "admin" user with a random password into an empty
// repository, so a fresh Postgres user source can be logged into at all.
// It does nothing once any user exists.
func BootstrapAdmin(ctx context.Context, repo UserRepository, cfg Config) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}
	has, err := repo.HasUsers(ctx)
	if err != nil {
		return fmt.Errorf("check users: %w", err)
	}
	if has {
		return nil
	}

	password, err := randomPassword(bootstrapPasswordLength)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	if _, err := repo.Create(ctx, bootstrapUsername, string(hash)); err != nil {
		return fmt.Errorf("create %s: %w", bootstrapUsername, err)
	}

	if cfg.InitialAdminPasswordPath == "" {
		log.Warn().Str("username", bootstrapUsername).Str("password", password).Msg("initial admin created")
		return nil
	}
	if err := writeSecret(cfg.InitialAdminPasswordPath, password); err != nil {
		return err
	}
	log.Info().Str("username", bootstrapUsername).Str("path", cfg.InitialAdminPasswordPath).Msg("initial admin created")
	return nil
}

func writeSecret(path, secret string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	return nil
}

// randomPassword returns n URL-safe characters drawn from crypto/rand.
func randomPassword(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:n], nil
}
