// Package payment provides the deterministic payment-gateway stand-in.
// Classification is pure (no I/O, no randomness) so checkout behaviour is
// reproducible in tests.
package payment

import "strings"

// Outcome is the simulated transaction result.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
	OutcomeError    Outcome = "error"
)

// Simulate classifies a payment attempt from the last digit of the card
// number: 1 approves, 2 declines, 3 errors, everything else approves.
func Simulate(cardNumber string) Outcome {
	if cardNumber == "" {
		return OutcomeError
	}
	switch cardNumber[len(cardNumber)-1] {
	case '2':
		return OutcomeDeclined
	case '3':
		return OutcomeError
	default:
		return OutcomeApproved
	}
}

// MaskCard redacts all but the last four digits of a card number. Numbers
// shorter than four digits are fully redacted.
func MaskCard(number string) string {
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
