package ledger

import (
	"fmt"
	"time"
)

// DefaultNumberPrefix starts every invoice number
const DefaultNumberPrefix = "INV"

// FormatNumber builds the human invoice number from the issue time at
// second resolution and the ledger sequence, e.g. INV20261016153012-000042.
// The sequence suffix keeps numbers unique within the same second.
func FormatNumber(prefix string, issuedAt time.Time, sequence int64) string {
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	return fmt.Sprintf("%s%s-%06d", prefix, issuedAt.Format("20060102150405"), sequence)
}
