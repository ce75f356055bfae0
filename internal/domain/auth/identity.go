package auth

import "github.com/go-faster/errors"

// ErrNoIdentity is returned when a request carries neither a customer nor a
// session identity.
var ErrNoIdentity = errors.New("no identity present")

// Identity is what the external auth collaborator resolves for a request:
// an authenticated customer, an anonymous session, or both during login.
type Identity struct {
	CustomerID string
	SessionID  string
}

// Authenticated reports whether the identity belongs to a logged-in customer.
func (id Identity) Authenticated() bool {
	return id.CustomerID != ""
}

// OwnerRef returns the cart/order owner key for this identity. Cart ownership
// keys off the customer when present, the session otherwise.
func (id Identity) OwnerRef() (string, error) {
	switch {
	case id.CustomerID != "":
		return "customer:" + id.CustomerID, nil
	case id.SessionID != "":
		return "session:" + id.SessionID, nil
	default:
		return "", ErrNoIdentity
	}
}
