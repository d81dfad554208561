// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package canonical produces RFC 8785 (JCS) canonical JSON and digests.
// Audit payloads are stored in canonical form so snapshot provenance
// checks can compare bytes, not parsed structures.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Marshal encodes v as RFC 8785 canonical JSON.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing payload: %w", err)
	}
	return canonical, nil
}

// Digest returns the sha256 hex digest of v's canonical JSON form.
func Digest(v any) (string, error) {
	canonical, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
