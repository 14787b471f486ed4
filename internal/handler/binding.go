package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/clinicore/clinic-api/internal/model"
)

// RegisterValidations installs the custom binding validators used by
// request structs. Called once at router construction.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("permission_name", func(fl validator.FieldLevel) bool {
		return model.PermissionNamePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("role_name", func(fl validator.FieldLevel) bool {
		return model.RoleNamePattern.MatchString(fl.Field().String())
	})
}
