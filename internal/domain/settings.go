package domain

import (
	"errors"
	"strings"
)

// ErrIncompleteSettings reports a Settings value missing a required field.
var ErrIncompleteSettings = errors.New("incomplete settings")

// Settings holds the LibreLinkUp credentials used to sync glucose data.
// Values are opaque; only presence is checked.
type Settings struct {
	LibreLinkUpUsername string `json:"libreLinkUpUsername"`
	LibreLinkUpPassword string `json:"libreLinkUpPassword"`
	LibreLinkUpRegion   string `json:"libreLinkUpRegion"`
}

// Validate checks that username and password are present.
// Region is filled in by the store once the credentials are verified.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.LibreLinkUpUsername) == "" {
		return &FieldError{Field: "username", Err: ErrIncompleteSettings}
	}
	if strings.TrimSpace(s.LibreLinkUpPassword) == "" {
		return &FieldError{Field: "password", Err: ErrIncompleteSettings}
	}
	return nil
}

// IsComplete reports whether all fields needed to sign in are set.
func (s Settings) IsComplete() bool {
	return s.Validate() == nil && strings.TrimSpace(s.LibreLinkUpRegion) != ""
}

// Redacted returns a copy that is safe to log.
func (s Settings) Redacted() Settings {
	if s.LibreLinkUpPassword != "" {
		s.LibreLinkUpPassword = "********"
	}
	return s
}

// FieldError names the settings field that failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + " must not be empty" }

func (e *FieldError) Unwrap() error { return e.Err }
