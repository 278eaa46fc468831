package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("not_nil_uuid", validateNotNilUUID)
	return v
}

func validateNotNilUUID(fl validator.FieldLevel) bool {
	id, ok := fl.Field().Interface().(uuid.UUID)
	return ok && id != uuid.Nil
}
