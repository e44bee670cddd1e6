package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeProgramID derives a deterministic program identifier from its
// normalized name, jurisdiction level, and location key. Truncated to 16
// hex characters — enough entropy to avoid collisions within a single
// jurisdiction's program set without bloating index size.
func ComputeProgramID(normalizedName string, level Level, locationKey string) string {
	raw := fmt.Sprintf("%s|%s|%s", normalizedName, level, locationKey)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}
