package form

import (
	"errors"
	"fmt"

	"opent1d/internal/domain"
)

var (
	// ErrUnknownField is returned when editing a field the form does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotReady is returned when editing or saving before a successful load.
	ErrNotReady = errors.New("form is not ready")
)

// Field names an editable input.
type Field string

const (
	FieldUsername Field = "username"
	FieldPassword Field = "password"
)

// Fields lists the editable inputs in display order.
var Fields = []Field{FieldUsername, FieldPassword}

// Values is the local, editable copy of the settings. Region is read-only.
type Values struct {
	Username string
	Password string
	Region   string
}

// ValuesFrom copies settings into form values.
func ValuesFrom(s domain.Settings) Values {
	return Values{
		Username: s.LibreLinkUpUsername,
		Password: s.LibreLinkUpPassword,
		Region:   s.LibreLinkUpRegion,
	}
}

// Apply returns v with only field replaced by value.
func Apply(v Values, field Field, value string) (Values, error) {
	switch field {
	case FieldUsername:
		v.Username = value
	case FieldPassword:
		v.Password = value
	default:
		return v, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return v, nil
}
