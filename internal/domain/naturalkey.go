package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// naturalKeySeparator joins the key parts before hashing. It never
// appears in normalized parts, so distinct tuples cannot collide by
// concatenation.
const naturalKeySeparator = "|"

// NaturalKey derives the deduplication key for a logical fact from the
// organization, the reference date and the distinguishing business
// keys of the row (pen, equipment, shift, ...). Parts are lowercased
// and trimmed so cosmetic differences between uploads do not produce
// distinct keys. The digest is truncated to 16 bytes, which keeps the
// unique index compact while leaving collisions out of practical reach.
func NaturalKey(organizationID uuid.UUID, referenceDate time.Time, parts ...string) string {
	elems := make([]string, 0, len(parts)+2)
	elems = append(elems, organizationID.String(), referenceDate.Format("2006-01-02"))
	for _, part := range parts {
		cleaned := strings.ToLower(strings.TrimSpace(part))
		cleaned = strings.ReplaceAll(cleaned, naturalKeySeparator, "_")
		elems = append(elems, cleaned)
	}
	sum := sha256.Sum256([]byte(strings.Join(elems, naturalKeySeparator)))
	return hex.EncodeToString(sum[:16])
}
