// Package id generates the prefixed identifiers the client mints locally.
// Backend entities keep the identifiers the backend assigns.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for locally minted identifiers.
const (
	PrefixTab     = "tab"  // reading-state cache handle (one per "tab")
	PrefixRequest = "req"  // X-Request-ID on outbound calls
	PrefixStream  = "sse"  // companion server SSE client
	PrefixSession = "sess" // companion server UI session
)

// requestAlphabet avoids '-' and '_' so request IDs survive log grepping.
const requestAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "tab-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// RequestID returns a short lowercase ID for correlating one outbound call.
// It falls back to a fixed marker when entropy is unavailable; the ID is
// diagnostic only.
func RequestID() string {
	id, err := gonanoid.Generate(requestAlphabet, 12)
	if err != nil {
		return PrefixRequest + "-unknown"
	}
	return PrefixRequest + "-" + id
}
