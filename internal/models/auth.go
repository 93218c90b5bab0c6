package models

// Login represents the credentials submitted for user login.
type Login struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type SendOTPRequest struct {
	Phone string `json:"phone"`
}

type RegisterRequest struct {
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

type ResetPasswordRequest struct {
	Phone       string `json:"phone"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type Session struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}
