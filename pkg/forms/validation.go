package forms

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

var errInvalid = errors.New("invalid")

// Validator validates a field value.
type Validator interface {
	// Validate checks if the value is valid.
	Validate(value any) error

	// Message returns the error message shown to the user.
	Message() string
}

// Check runs validators in order and returns the first failing message,
// or "" when value passes all of them.
func Check(value any, validators ...Validator) string {
	for _, v := range validators {
		if err := v.Validate(value); err != nil {
			return v.Message()
		}
	}
	return ""
}

// IsEmpty reports whether value counts as "not filled in": nil, a blank
// string, an empty slice or map, a false bool, or a nil pointer.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		return rv.IsNil()
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	}
	return false
}

// RequiredValidator validates that a field is filled in.
type RequiredValidator struct {
	Msg string
}

func (v RequiredValidator) Validate(value any) error {
	if IsEmpty(value) {
		return errInvalid
	}
	return nil
}

func (v RequiredValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "Ce champ est requis"
}

// EmailValidator validates mailbox syntax. Empty values pass; pair it with
// RequiredValidator.
type EmailValidator struct {
	Msg string
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func (v EmailValidator) Validate(value any) error {
	str, _ := value.(string)
	if str == "" {
		return nil
	}
	if !emailRegex.MatchString(str) {
		return errInvalid
	}
	return nil
}

func (v EmailValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "Format d'email invalide"
}

// MinLengthValidator validates minimum string length in runes.
type MinLengthValidator struct {
	Min int
	Msg string
}

func (v MinLengthValidator) Validate(value any) error {
	str, _ := value.(string)
	if str == "" {
		return nil
	}
	if utf8.RuneCountInString(str) < v.Min {
		return fmt.Errorf("too short (min %d)", v.Min)
	}
	return nil
}

func (v MinLengthValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return fmt.Sprintf("Minimum %d caractères", v.Min)
}

// PatternValidator validates a string against a compiled expression.
type PatternValidator struct {
	Re  *regexp.Regexp
	Msg string
}

func (v PatternValidator) Validate(value any) error {
	str, _ := value.(string)
	if str == "" {
		return nil
	}
	if !v.Re.MatchString(str) {
		return errInvalid
	}
	return nil
}

func (v PatternValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "Format invalide"
}

// OneOfValidator validates that a string is one of the allowed values.
// Empty values pass.
type OneOfValidator struct {
	Values []string
	Msg    string
}

func (v OneOfValidator) Validate(value any) error {
	str, _ := value.(string)
	if str == "" {
		return nil
	}
	for _, allowed := range v.Values {
		if str == allowed {
			return nil
		}
	}
	return errInvalid
}

func (v OneOfValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "Sélection invalide"
}

// CustomValidator wraps a validation function.
type CustomValidator struct {
	Fn  func(value any) error
	Msg string
}

func (v CustomValidator) Validate(value any) error {
	return v.Fn(value)
}

func (v CustomValidator) Message() string {
	return v.Msg
}

// Required returns a required validator with an optional message.
func Required(msg ...string) Validator {
	return RequiredValidator{Msg: first(msg)}
}

// Email returns an email validator with an optional message.
func Email(msg ...string) Validator {
	return EmailValidator{Msg: first(msg)}
}

// MinLength returns a minimum length validator with an optional message.
func MinLength(n int, msg ...string) Validator {
	return MinLengthValidator{Min: n, Msg: first(msg)}
}

// Pattern compiles pattern and returns a validator for it. It panics on an
// invalid expression, like regexp.MustCompile.
func Pattern(pattern string, msg ...string) Validator {
	return PatternValidator{Re: regexp.MustCompile(pattern), Msg: first(msg)}
}

// OneOf returns a validator accepting only options' values.
func OneOf(options []Option, msg ...string) Validator {
	values := make([]string, len(options))
	for i, o := range options {
		values[i] = o.Value
	}
	return OneOfValidator{Values: values, Msg: first(msg)}
}

// Custom returns a custom validator.
func Custom(fn func(value any) error, msg string) Validator {
	return CustomValidator{Fn: fn, Msg: msg}
}

func first(msg []string) string {
	if len(msg) > 0 {
		return msg[0]
	}
	return ""
}
