// Package id generates prefixed identifiers for runs and users.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each entity kind.
const (
	PrefixRun  = "run"
	PrefixUser = "user"
)

// Generate returns prefix-nanoid, e.g. "run-V1StGXR8_Z5jdHi6B-myT".
// It fails only when the system cannot supply secure randomness.
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// NewRunID returns an identifier for a newly submitted run.
func NewRunID() (string, error) {
	return Generate(PrefixRun)
}

// NewUserID returns an identifier for a newly registered runner.
func NewUserID() (string, error) {
	return Generate(PrefixUser)
}

// MustGenerate is like Generate but panics on failure. Seed and CLI code only.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}
