package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinicbook/internal/apperrors"
	"clinicbook/internal/models"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     interface{}
		message string
	}{
		{"booking ok", models.BookingRequest{Date: "2030-03-05", TimeSlot: "10:00 AM"}, ""},
		{"booking without date", models.BookingRequest{TimeSlot: "10:00 AM"}, "Date and time slot are required"},
		{"booking without slot", models.BookingRequest{Date: "2030-03-05"}, "Date and time slot are required"},
		{"register ok without email", models.RegisterRequest{Name: "Asha", Password: "12345678"}, ""},
		{"register empty password", models.RegisterRequest{Name: "Asha"}, "Password must be at least 8 characters"},
		{"register bad email", models.RegisterRequest{Name: "Asha", Password: "12345678", Email: "asha.example.com"}, "Invalid email address"},
		{"reset short password", models.ResetPasswordRequest{NewPassword: "1234567"}, "Password must be at least 8 characters"},
		{"reset ok", models.ResetPasswordRequest{NewPassword: "12345678"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req)
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Equal(t, tt.message, apperrors.PublicMessage(err))
		})
	}
}

func TestValidateRequestNonStruct(t *testing.T) {
	err := validateRequest("not a struct")
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}
