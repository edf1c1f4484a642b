package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed audit hashes.
// Version suffix enables future algorithm migration.
const (
	DomainBody = "contentpipe/body/v1"
	DomainEdit = "contentpipe/edit/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes a document body byte-for-byte (no normalization), so
// two snapshots share a hash only if their bodies are identical.
func ContentHash(body string) string {
	return hashWithDomain(DomainBody, []byte(body))
}

// EditHash computes the audit hash of a parsed edit.
func EditHash(e Edit) (string, error) {
	canonical, err := MarshalCanonical(EditObject(e))
	if err != nil {
		return "", fmt.Errorf("EditHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEdit, canonical), nil
}
