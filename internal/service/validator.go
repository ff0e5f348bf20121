package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"user-registry/internal/domain"
)

// CreateUserInput is the payload of a create request.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
}

// UpdateUserInput is the payload of a partial update. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username *string `json:"username" validate:"omitnil,notblank"`
	Email    *string `json:"email" validate:"omitnil,email"`
}

// Changes returns the supplied fields as a change set.
func (in UpdateUserInput) Changes() domain.UserChanges {
	return domain.UserChanges{Username: in.Username, Email: in.Email}
}

// Validator checks payload shape before any store access.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// the tag comes from the non-standard set and only fails on a typo here
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// ValidateCreate reports every missing or malformed field at once.
func (val *Validator) ValidateCreate(in CreateUserInput) error {
	return val.check(in)
}

// ValidateUpdate only checks the fields that are present.
func (val *Validator) ValidateUpdate(in UpdateUserInput) error {
	return val.check(in)
}

func (val *Validator) check(in any) error {
	err := val.v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &domain.ValidationError{Fields: make([]domain.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, domain.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "notblank":
		return "must not be blank"
	default:
		return "invalid value"
	}
}
