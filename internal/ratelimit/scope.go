package ratelimit

import (
	"errors"
	"fmt"
	"strings"
)

const keyPrefix = "ratelimit:"

// Scope names an independent counter family: one endpoint category combined
// with one identifier kind.
type Scope string

const (
	LoginIP       Scope = "login-ip"
	LoginEmail    Scope = "login-email"
	RegisterIP    Scope = "register-ip"
	RegisterEmail Scope = "register-email"
	CheckoutIP    Scope = "checkout-ip"
)

// Scopes lists every known scope.
var Scopes = []Scope{LoginIP, LoginEmail, RegisterIP, RegisterEmail, CheckoutIP}

var ErrEmptyIdentifier = errors.New("ratelimit: empty identifier")

func (s Scope) isEmail() bool { return strings.HasSuffix(string(s), "-email") }

// Key returns the store key for identifier under s, for example
// "ratelimit:login:email:user@example.com". Email identifiers are trimmed and
// lower-cased so case variations share one counter.
func Key(s Scope, identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if s.isEmail() {
		id = strings.ToLower(id)
	}
	if id == "" {
		return "", fmt.Errorf("%w for %s", ErrEmptyIdentifier, s)
	}
	return keyPrefix + strings.Replace(string(s), "-", ":", 1) + ":" + id, nil
}
