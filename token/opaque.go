// Package token issues opaque session tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32

// NewOpaqueToken returns 32 random bytes encoded as unpadded URL-safe base64.
func NewOpaqueToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Errorf("failed to generate opaque token: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
