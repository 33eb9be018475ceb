package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/OsGift/safawinet-api/internal/models"
)

var (
	personNameRegex = regexp.MustCompile(`^[\p{L}][\p{L} '\-]*$`)
	phoneRegex      = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)
)

// NewValidator returns a validator with the custom tags used by request models:
// personname, phone and password.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsAcceptablePassword(fl.Field().String())
	})
	return v
}

// IsAcceptablePassword enforces the minimum password rules: 8+ characters with
// at least one upper-case letter, one lower-case letter and one digit.
func IsAcceptablePassword(p string) bool {
	if len(p) < 8 || len(p) > 128 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// FormatValidationErrors converts validator output into field errors
func FormatValidationErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Message: err.Error()}}
	}
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{Field: fe.Field(), Message: FormatValidationError(fe)})
	}
	return out
}

// FormatValidationError formats a validation error into a user-friendly message
func FormatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("Minimum length is %s", err.Param())
	case "max":
		return fmt.Sprintf("Maximum length is %s", err.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", err.Param())
	case "personname":
		return "Only letters, spaces, apostrophes and hyphens are allowed"
	case "phone":
		return "Invalid phone number"
	case "password":
		return "Password must be at least 8 characters and contain upper-case, lower-case and a digit"
	case "eqfield":
		return "Passwords do not match"
	case "nefield":
		return "New password must differ from the current password"
	case "hexcolor":
		return "Must be a hex colour such as #2563EB"
	case "url":
		return "Invalid URL"
	default:
		return fmt.Sprintf("Validation failed on %s", err.Tag())
	}
}
