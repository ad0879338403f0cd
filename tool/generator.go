package tool

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateRandomUUID returns a new random (v4) UUID string.
func GenerateRandomUUID() string {
	return uuid.New().String()
}

// GenerateShortRunID returns a short alphanumeric ID (8 chars) for upload runs.
// Shorter than UUID so it is easier to type into curl.
func GenerateShortRunID() string {
	b := make([]byte, 4) // 4 bytes = 8 hex chars
	if _, err := rand.Read(b); err != nil {
		return GenerateRandomUUID()[:8] // fallback
	}
	return hex.EncodeToString(b)
}
