package ident

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewID creates a fresh entity id in prefix-xxxxx format (5-char hex).
func NewID(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ident: new id: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b)[:5], nil
}
