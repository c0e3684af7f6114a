package model

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPhoneNumber is returned for numbers outside E.164 digit form.
var ErrInvalidPhoneNumber = errors.New("phone number must be 2-15 digits and not start with 0")

var phonePattern = regexp.MustCompile(`^[1-9]\d{1,14}$`)

// PhoneNumber is an E.164 number without the leading "+", e.g. "998991234567".
type PhoneNumber string

// ParsePhoneNumber trims surrounding whitespace and validates s.
func ParsePhoneNumber(s string) (PhoneNumber, error) {
	p := PhoneNumber(strings.TrimSpace(s))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate checks the number against the E.164 digit pattern.
func (p PhoneNumber) Validate() error {
	if !phonePattern.MatchString(string(p)) {
		return ErrInvalidPhoneNumber
	}
	return nil
}

func (p PhoneNumber) String() string {
	return string(p)
}
