package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/velora/commerce-api/internal/core/domain"
)

// requestValidator wraps go-playground/validator so Echo can call
// c.Validate(req). On top of the built-in tags it registers a "permission"
// tag that checks the "<action>:<resource>" grammar, including wildcard
// segments.
type requestValidator struct {
	v *validator.Validate
}

// NewValidator returns a validator ready to be assigned to echo.Echo.Validator.
func NewValidator() *requestValidator {
	v := validator.New()
	_ = v.RegisterValidation("permission", func(fl validator.FieldLevel) bool {
		return domain.ValidPermission(fl.Field().String())
	})
	return &requestValidator{v: v}
}

// Validate satisfies the echo.Validator interface. Validation failures are
// flattened into a single human-readable message, one clause per field.
func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "permission":
		return field + " must be in action:resource form"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
