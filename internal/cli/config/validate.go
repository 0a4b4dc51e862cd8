package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yndnr/mtlsclient-go/pkg/resource"
)

// ErrInvalidProfile is returned when a profile fails validation.
var ErrInvalidProfile = errors.New("config: invalid profile")

// Validator checks profiles.
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a validator with the locator rule and the
// credential shape rules registered.
func NewValidator() *Validator {
	validate := validator.New()

	_ = validate.RegisterValidation("locator", validateLocator)
	validate.RegisterStructValidation(validateCredentials, Credentials{})

	return &Validator{validator: validate}
}

// Validate validates p. Field errors are joined into one error wrapping
// ErrInvalidProfile.
func (v *Validator) Validate(p *Profile) error {
	err := v.validator.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(msgs, "; "))
}

// Validate checks p with a fresh Validator.
func Validate(p *Profile) error {
	return NewValidator().Validate(p)
}

// validateLocator accepts plain paths and URIs whose scheme the default
// resource mux serves.
func validateLocator(fl validator.FieldLevel) bool {
	scheme, err := resource.Scheme(fl.Field().String())
	if err != nil {
		return false
	}
	switch scheme {
	case "file", "http", "https", "s3", "vault":
		return true
	default:
		return false
	}
}

// validateCredentials enforces that a keystore comes with a password
// source and that password sources are only given with a keystore.
func validateCredentials(sl validator.StructLevel) {
	c := sl.Current().Interface().(Credentials)
	hasPassword := c.Password != "" || c.PasswordFile != "" || c.PasswordEnv != ""

	switch {
	case c.KeyStore != "" && !hasPassword:
		sl.ReportError(c.Password, "Password", "password", "required_with_keystore", "")
	case c.KeyStore == "" && hasPassword:
		sl.ReportError(c.KeyStore, "KeyStore", "keystore", "required_with_password", "")
	}
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Profile.")
	switch fe.Tag() {
	case "required_without":
		return fmt.Sprintf("%s is required without %s", field, fe.Param())
	case "required_with":
		return fmt.Sprintf("%s is required with %s", field, fe.Param())
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", field, fe.Param())
	case "required_with_keystore":
		return "keystore requires password, password_file or password_env"
	case "required_with_password":
		return "a password source requires keystore"
	case "locator":
		return fmt.Sprintf("%s is not a supported locator", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
