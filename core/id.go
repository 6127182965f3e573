package core

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// newTokenID returns 128 random bits as 32 lowercase hex characters.
func newTokenID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewInstanceID identifies a running process as hostname:pid:suffix.
func NewInstanceID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "authgate"
	}
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), newTokenID()[:12])
}
