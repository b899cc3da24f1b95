package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Signer produces and verifies the HMAC-SHA256 signatures carried by
// confirmation batons. The key always comes from configuration; there is no
// built-in fallback secret.
type Signer struct {
	key []byte
}

// NewSigner builds a Signer from the configured secret.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &Signer{key: []byte(secret)}, nil
}

// SignBaton computes the hex MAC over subjectID, snapshotHash and approvedBy.
// The fields are length-delimited so no two field combinations can collide.
func (s *Signer) SignBaton(subjectID, snapshotHash, approvedBy string) string {
	mac := hmac.New(sha256.New, s.key)
	for _, field := range []string{subjectID, snapshotHash, approvedBy} {
		fmt.Fprintf(mac, "%d:%s;", len(field), field)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBaton reports whether signature matches the expected MAC, in
// constant time.
func (s *Signer) VerifyBaton(subjectID, snapshotHash, approvedBy, signature string) bool {
	expected := s.SignBaton(subjectID, snapshotHash, approvedBy)
	return hmac.Equal([]byte(expected), []byte(signature))
}
