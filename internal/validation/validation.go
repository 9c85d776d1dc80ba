// Package validation holds the input-shape checks that run before any store
// access. Every check is pure: inputs are normalized and returned as a copy,
// and all violated rules are reported together.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/go-playground/validator/v10"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)
)

const (
	MsgName          = "Name must be at least 2 characters long"
	MsgEmail         = "Valid email is required"
	MsgContact       = "Valid contact number is required (10-15 digits)"
	MsgPassword      = "Password must be at least 6 characters long"
	MsgLoginPassword = "Password is required"
	MsgItemName      = "Item name must be at least 2 characters long"
	MsgItemQuantity  = "Quantity must be at least 1"
	MsgItemCategory  = "Category is required"
)

// Errors lists human-readable messages, one per violated rule, in field order.
type Errors []string

func (e Errors) Error() string {
	return "validation failed: " + strings.Join(e, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	return v
}

var registrationMessages = map[string]string{
	"Name":     MsgName,
	"Email":    MsgEmail,
	"Contact":  MsgContact,
	"Password": MsgPassword,
}

var loginMessages = map[string]string{
	"Email":    MsgEmail,
	"Password": MsgLoginPassword,
}

var itemMessages = map[string]string{
	"ItemName": MsgItemName,
	"Quantity": MsgItemQuantity,
	"Category": MsgItemCategory,
}

// Registration trims name and contact and normalizes the email before checking.
func Registration(in user.RegisterInput) (user.RegisterInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = user.NormalizeEmail(in.Email)
	in.Contact = strings.TrimSpace(in.Contact)

	return in, check(in, registrationMessages)
}

func Login(in user.LoginInput) (user.LoginInput, error) {
	in.Email = user.NormalizeEmail(in.Email)

	return in, check(in, loginMessages)
}

func Item(in item.Input) (item.Input, error) {
	in = in.Normalize()

	return in, check(in, itemMessages)
}

func check(in any, messages map[string]string) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(Errors, 0, len(fieldErrs))
	seen := make(map[string]struct{}, len(fieldErrs))

	for _, fe := range fieldErrs {
		field := fe.StructField()
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}

		msg, ok := messages[field]
		if !ok {
			msg = field + " failed " + fe.Tag() + " validation"
		}
		out = append(out, msg)
	}

	return out
}
