package util

import (
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// IsValidEmailSyntax performs local (offline) email validation: RFC 5322
// address parsing plus IDNA conversion of the domain part, so punycode and
// unicode domains validate the same way.
func IsValidEmailSyntax(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// no display names, the full input must be the address
	if addr.Address != email {
		return false
	}
	domain := ExtractDomain(email)
	if domain == "" {
		return false
	}
	if _, iErr := idna.Lookup.ToASCII(domain); iErr != nil {
		return false
	}
	return true
}

// ExtractDomain returns the domain part of an email address, lowercased,
// or "" when there is none.
func ExtractDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
