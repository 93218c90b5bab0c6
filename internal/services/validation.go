package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"clinicbook/internal/apperrors"
)

// MinPasswordLength matches the min tag on password fields.
const MinPasswordLength = 8

var validate = validator.New()

// fieldMessages maps "Field.tag" to the message shown to the client.
var fieldMessages = map[string]string{
	"Name.required":     "Name is required",
	"Email.email":       "Invalid email address",
	"Date.required":     "Date and time slot are required",
	"TimeSlot.required": "Date and time slot are required",
}

// validateRequest checks v's validate tags and reports the first failure as
// a Validation error.
func validateRequest(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Internal(err)
	}
	return apperrors.Validation(fieldMessage(verrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Field() {
	case "Password", "NewPassword":
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}
	return fe.Field() + " is invalid"
}
