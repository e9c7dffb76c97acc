// Package validate runs the local form checks that must pass before any
// request leaves the client.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/dtroode/jobboard-client/internal/model"
)

// ErrInvalid matches every *Error via errors.Is.
var ErrInvalid = errors.New("invalid input")

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Error is a local validation failure. It never carries a network kind.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// UserMessage returns the first field message.
func (e *Error) UserMessage() string {
	if len(e.Fields) == 0 {
		return "Invalid input"
	}
	return e.Fields[0].Message
}

// LoginForm is the password login form.
type LoginForm struct {
	Identifier string `validate:"required" label:"Username or email"`
	Secret     string `validate:"required" label:"Password"`
}

// OTPForm is a six digit one-time code.
type OTPForm struct {
	Code string `validate:"required,numeric,len=6" label:"Verification code"`
}

// EmailForm carries a single email address.
type EmailForm struct {
	Email string `validate:"required,email" label:"Email"`
}

// RegisterForm is the account registration form.
type RegisterForm struct {
	Username string `validate:"required,min=3,max=30,username" label:"Username"`
	Email    string `validate:"required,email" label:"Email"`
	Password string `validate:"required,min=8,strongpassword" label:"Password"`
	Confirm  string `validate:"required" label:"Confirm password"`
}

// Validator wraps a configured validator.Validate.
type Validator struct {
	v              *validator.Validate
	resetMinLength int
}

// New creates a Validator. resetMinLength is the minimum length of a new
// password chosen through the reset flow.
func New(resetMinLength int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return fld.Name
	})
	// Registration of built-in style validators cannot fail for static tags.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})

	return &Validator{v: v, resetMinLength: resetMinLength}
}

// Login checks the password login form.
func (v *Validator) Login(identifier, secret string) error {
	return v.check(LoginForm{Identifier: strings.TrimSpace(identifier), Secret: secret})
}

// OTP checks a one-time code.
func (v *Validator) OTP(code string) error {
	return v.check(OTPForm{Code: code})
}

// Email checks an email address.
func (v *Validator) Email(email string) error {
	return v.check(EmailForm{Email: strings.TrimSpace(email)})
}

// Register checks the registration form. A confirmation mismatch is reported
// as model.ErrPasswordMismatch.
func (v *Validator) Register(form RegisterForm) error {
	if err := v.check(form); err != nil {
		return err
	}
	if form.Password != form.Confirm {
		return model.ErrPasswordMismatch
	}
	return nil
}

// ResetPassword checks a new password and its confirmation. The match is
// checked before the length.
func (v *Validator) ResetPassword(password, confirm string) error {
	if password != confirm {
		return model.ErrPasswordMismatch
	}
	if err := v.v.Var(password, fmt.Sprintf("required,min=%d", v.resetMinLength)); err != nil {
		return translate(err, "Password")
	}
	return nil
}

func (v *Validator) check(form any) error {
	if err := v.v.Struct(form); err != nil {
		return translate(err, "")
	}
	return nil
}

func translate(err error, field string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		name := fe.Field()
		if name == "" {
			name = field
		}
		out.Fields = append(out.Fields, FieldError{
			Field:   name,
			Tag:     fe.Tag(),
			Message: message(name, fe),
		})
	}
	return out
}

func message(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", name, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", name, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain digits only", name)
	case "username":
		return fmt.Sprintf("%s can only contain letters, numbers, and underscores", name)
	case "strongpassword":
		return fmt.Sprintf("%s must contain an uppercase letter, a lowercase letter, and a number", name)
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

func strongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
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
