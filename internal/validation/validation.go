// Package validation wraps go-playground/validator with the rules and
// messages used by the auth endpoints.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/shailendra378/tradingqueen/internal/errors"
)

// emailPattern accepts anything shaped like local@domain.tld.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// tagOrder decides which failure is reported when several fields fail
// different rules: missing input first, then format, then length.
var tagOrder = []string{"required", "emailaddr", "min", "max"}

// Messages maps a validation tag to the message reported for it.
type Messages map[string]string

// Validator validates tagged request structs.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that reports fields by their json names and knows
// the "emailaddr" rule.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// registration only fails on an empty tag or nil func
	_ = v.RegisterValidation("emailaddr", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	return &Validator{validate: v}
}

// IsEmail reports whether s looks like an email address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Validate implements echo.Validator using generic messages.
func (v *Validator) Validate(i interface{}) error {
	return v.ValidateWith(i, nil)
}

// ValidateWith validates s and returns a validation DomainError carrying the
// message for the highest-priority failed rule and the fields that failed it.
func (v *Validator) ValidateWith(s interface{}, msgs Messages) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	byTag := make(map[string][]string)
	for _, fe := range verrs {
		byTag[fe.Tag()] = append(byTag[fe.Tag()], fe.Field())
	}
	for _, tag := range tagOrder {
		if fields, ok := byTag[tag]; ok {
			return apperrors.Validation(message(msgs, tag, fields, verrs), fields...)
		}
	}
	fe := verrs[0]
	return apperrors.Validation(message(msgs, fe.Tag(), []string{fe.Field()}, verrs), fe.Field())
}

func message(msgs Messages, tag string, fields []string, verrs validator.ValidationErrors) string {
	if m, ok := msgs[tag]; ok {
		return m
	}
	switch tag {
	case "required":
		return "missing required fields: " + strings.Join(fields, ", ")
	case "emailaddr":
		return "invalid email format"
	case "min", "max":
		for _, fe := range verrs {
			if fe.Field() == fields[0] && fe.Tag() == tag {
				if tag == "min" {
					return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
				}
				return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
			}
		}
	}
	return "invalid " + strings.Join(fields, ", ")
}
