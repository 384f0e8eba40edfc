// Package certref derives investment certificate references.
package certref

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// refLength is the number of base58 characters kept from the digest.
// 20 characters cover well over 100 bits, enough to make collisions
// between certificates implausible.
const refLength = 20

// Compute derives a deterministic certificate reference for a reconciled
// investment. Formula: base58(SHA256(project_id|investor|reference|amount)),
// truncated to refLength characters.
//
// The certificate reference is stable across re-reconciliation of the same
// external reference, so backend upserts keep issuing the same certificate.
func Compute(projectID, investor, reference string, amount float64) string {
	data := fmt.Sprintf("%s|%s|%s|%g",
		projectID,
		investor,
		reference,
		amount,
	)

	hash := sha256.Sum256([]byte(data))
	encoded := base58.Encode(hash[:])
	if len(encoded) > refLength {
		encoded = encoded[:refLength]
	}
	return encoded
}
