package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate     = newValidator()
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("user_role", validateUserRole)
	_ = v.RegisterValidation("phone", validatePhone)
	return v
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "user", "admin":
		return true
	}
	return false
}

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}
