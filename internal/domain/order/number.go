package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// numberPrefix is the human-readable order number prefix.
const numberPrefix = "ORD"

// NewOrderNumber generates a globally unique, human-readable order number:
// the prefix, the UTC date, and a random 8-character suffix. Uniqueness is
// additionally enforced by the orders table constraint.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("%s-%s-%s", numberPrefix, now.UTC().Format("20060102"), suffix)
}
