package user

import (
	appErrors "storefront-identity/pkg/errors"
	"storefront-identity/pkg/utils"
)

func validateRequest(req interface{}) error {
	if err := utils.ValidateStruct(req); err != nil {
		return appErrors.NewValidationError(err)
	}
	return nil
}

func validatePassword(password string) error {
	if err := utils.ValidatePassword(password); err != nil {
		return appErrors.NewAppError(appErrors.CodeWeakPassword, err.Error(), nil)
	}
	return nil
}

func (r *RegisterRequest) sanitize() {
	r.Email = utils.SanitizeEmail(r.Email)
	r.Name = utils.SanitizeString(r.Name)
	r.Phone = utils.SanitizePhone(r.Phone)
	r.Address = utils.SanitizeText(r.Address)
}

func (r *UpdateProfileRequest) sanitize() {
	if r.Name != nil {
		v := utils.SanitizeString(*r.Name)
		r.Name = &v
	}
	if r.Phone != nil {
		v := utils.SanitizePhone(*r.Phone)
		r.Phone = &v
	}
	if r.Address != nil {
		v := utils.SanitizeText(*r.Address)
		r.Address = &v
	}
}
