package services

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidAmount  = errors.New("amount must be greater than 0")
	ErrInvalidChannel = errors.New("unrecognized donation channel")
	ErrInvalidEmail   = errors.New("invalid email address")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}
