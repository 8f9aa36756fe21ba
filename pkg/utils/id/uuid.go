package id

import (
	"github.com/google/uuid"
)

// UUIDGenerator generates UUID v4 identifiers.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUID generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate creates a new UUID v4 string.
func (g *UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// GenerateN creates n UUID v4 strings.
func (g *UUIDGenerator) GenerateN(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids
}

// ValidateUUID checks whether s is a valid UUID.
func ValidateUUID(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return ErrInvalidUUID
	}
	return nil
}
