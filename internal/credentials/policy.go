package credentials

import "unicode/utf8"

// maxPasswordLength bounds hashing cost for hostile inputs.
const maxPasswordLength = 256

// Policy is the password acceptance rule applied on sign-up.
type Policy struct {
	MinLength int
}

// Validate returns the reasons a password is rejected, or nil.
func (p Policy) Validate(password string) []string {
	var reasons []string
	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if n > maxPasswordLength {
		reasons = append(reasons, "too_long")
	}
	return reasons
}
