// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID strings for fallback filenames and session IDs.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv4 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return id.String(), nil
}

// NewShortID returns the first n hex characters of a UUIDv4, used to
// disambiguate default output directory names.
func (g Generator) NewShortID(n int) (string, error) {
	id, err := g.NewID()
	if err != nil {
		return "", err
	}
	hex := make([]byte, 0, n)
	for _, c := range id {
		if c == '-' {
			continue
		}
		hex = append(hex, byte(c))
		if len(hex) == n {
			break
		}
	}
	return string(hex), nil
}
