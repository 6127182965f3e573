package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "", cfg.ContextPath)
	assert.Equal(t, StoreMemory, cfg.TokenStore)
	assert.Equal(t, CodecCookie, cfg.SessionCodec)
	assert.Equal(t, "Lax", cfg.CookieSameSite)
	assert.Equal(t, 5*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.RememberMeTTL)
	assert.Empty(t, cfg.OpenPaths)
	assert.Equal(t, "/account/login", cfg.LoginPath())
	assert.Equal(t, "/", cfg.CookiePath())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CONTEXT_PATH", "/app/")
	t.Setenv("OPEN_PATHS", "/public, /assets ,")
	t.Setenv("TOKEN_STORE", "REDIS")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SINGLE_SESSION", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/app", cfg.ContextPath)
	assert.Equal(t, "/app/account/logout", cfg.LogoutPath())
	assert.Equal(t, "/app", cfg.CookiePath())
	assert.Equal(t, []string{"/public", "/assets"}, cfg.OpenPaths)
	assert.Equal(t, StoreRedis, cfg.TokenStore)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.SingleSession)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authgate.yaml")
	content := `
port: "9000"
open_paths:
  - /docs
  - /static
session_codec: jwt
jwt_secret: s3cret
login_rate: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"/docs", "/static"}, cfg.OpenPaths)
	assert.Equal(t, CodecJWT, cfg.SessionCodec)
	assert.Equal(t, 0.0, cfg.LoginRate)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TOKEN_STORE", "etcd")
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	jwtCfg := cfg
	jwtCfg.SessionCodec = CodecJWT
	assert.Error(t, jwtCfg.Validate())

	badSource := cfg
	badSource.UserSource = "ldap"
	assert.Error(t, badSource.Validate())

	noRemember := cfg
	noRemember.RememberMeTTL = 0
	assert.Error(t, noRemember.Validate())
}

func TestConfig_WarnsOnDefaultSessionKey(t *testing.T) {
	t.Setenv("SESSION_KEY", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaultSessionKey, cfg.SessionKey)
	require.Len(t, cfg.Warnings(), 1)
	assert.Contains(t, cfg.Warnings()[0], "SESSION_KEY")

	t.Setenv("SESSION_KEY", "a-real-key-a-real-key-a-real-key")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings())

	assert.Empty(t, testConfig().Warnings())
}
