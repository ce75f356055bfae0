// Package checkout validates raw checkout submissions before any mutation is
// attempted. Validation is pure: it either returns a normalized Input or a
// ValidationError listing every violated field, so the caller can render all
// form errors at once.
package checkout

import (
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Selection is one requested line: the variant, the quantity, and the unit
// price the customer saw. The price comes from the submission, so an order
// totals what was displayed even if the catalog price moved since.
type Selection struct {
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CustomerInfo holds contact and shipping fields.
type CustomerInfo struct {
	Name       string
	Email      string
	Address    string
	City       string
	PostalCode string
}

// CardInfo holds raw payment fields. The CVV is validated and then dropped;
// it is never persisted or logged.
type CardInfo struct {
	Number string
	Expiry string // MM/YY
	CVV    string
}

// Input is a validated, normalized checkout submission.
type Input struct {
	Customer CustomerInfo
	Card     CardInfo
	Items    []Selection
}

// ValidationError enumerates every violated field of a checkout submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "invalid checkout input: " + strings.Join(names, ", ")
}

// Validate checks shape and field-level constraints of a raw submission.
// now anchors the expiry check; pass time.Now in production code.
func Validate(raw Input, now time.Time) (*Input, error) {
	fields := map[string]string{}

	raw.Customer.Name = strings.TrimSpace(raw.Customer.Name)
	raw.Customer.Email = strings.TrimSpace(raw.Customer.Email)
	raw.Customer.Address = strings.TrimSpace(raw.Customer.Address)
	raw.Customer.City = strings.TrimSpace(raw.Customer.City)
	raw.Customer.PostalCode = strings.TrimSpace(raw.Customer.PostalCode)
	raw.Card.Number = strings.ReplaceAll(strings.TrimSpace(raw.Card.Number), " ", "")

	if raw.Customer.Name == "" {
		fields["name"] = "name is required"
	}
	if _, err := mail.ParseAddress(raw.Customer.Email); err != nil {
		fields["email"] = "well-formed email is required"
	}
	if raw.Customer.Address == "" {
		fields["address"] = "address is required"
	}
	if raw.Customer.City == "" {
		fields["city"] = "city is required"
	}
	if raw.Customer.PostalCode == "" {
		fields["postal_code"] = "postal code is required"
	}

	if !isCardNumber(raw.Card.Number) {
		fields["card_number"] = "card number must be 13-19 digits"
	}
	if exp, ok := parseExpiry(raw.Card.Expiry); !ok {
		fields["card_expiry"] = "expiry must be MM/YY"
	} else if exp.Before(now) {
		fields["card_expiry"] = "card is expired"
	}
	if !isDigits(raw.Card.CVV) || len(raw.Card.CVV) < 3 || len(raw.Card.CVV) > 4 {
		fields["card_cvv"] = "CVV must be 3 or 4 digits"
	}

	if len(raw.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, sel := range raw.Items {
		if sel.VariantID == "" {
			fields[fmt.Sprintf("items[%d].variant_id", i)] = "variant is required"
		}
		if sel.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be at least 1"
		}
		if sel.UnitPrice.IsNegative() {
			fields[fmt.Sprintf("items[%d].unit_price", i)] = "unit price must not be negative"
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return &raw, nil
}

func isCardNumber(s string) bool {
	return len(s) >= 13 && len(s) <= 19 && isDigits(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseExpiry parses MM/YY into the last instant of that month.
func parseExpiry(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return time.Time{}, false
	}
	// Cards remain valid through the end of the expiry month.
	return time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC), true
}
