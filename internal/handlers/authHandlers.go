package handlers

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"clinicbook/internal/middlewares"
	"clinicbook/internal/models"
	"clinicbook/internal/services"
	"clinicbook/internal/utils"
)

type AuthHandler struct {
	authService services.AuthService
	otpService  services.OTPService
}

func NewAuthHandler(authService services.AuthService, otpService services.OTPService) *AuthHandler {
	return &AuthHandler{authService: authService, otpService: otpService}
}

type otpSentResponse struct {
	Message string `json:"message"`
	Phone   string `json:"phone"`
}

// SendOTP issues a registration code.
func (a *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.SendOTPRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := a.otpService.SendRegistrationOTP(r.Context(), req.Phone); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	phone, _ := utils.NormalizePhone(req.Phone)
	utils.RespondWithJSON(w, http.StatusOK, otpSentResponse{Message: "OTP sent successfully", Phone: phone})
}

// VerifyOTP completes registration and signs the new user in.
func (a *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	session, err := a.authService.Register(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	hlog.FromRequest(r).Info().Str("user_id", session.User.ID).Msg("Registration completed")
	utils.RespondWithJSON(w, http.StatusCreated, session)
}

func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Login
	if err := utils.DecodeJSON(w, r, &creds); err != nil {
		return
	}

	session, err := a.authService.Login(r.Context(), creds.Identifier, creds.Password)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, session)
}

func (a *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.SendOTPRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := a.otpService.SendPasswordResetOTP(r.Context(), req.Phone); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	phone, _ := utils.NormalizePhone(req.Phone)
	utils.RespondWithJSON(w, http.StatusOK, otpSentResponse{Message: "OTP sent successfully", Phone: phone})
}

func (a *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := a.authService.ResetPassword(r.Context(), req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func (a *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := middlewares.UserFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "No token, authorization denied", http.StatusUnauthorized)
		return
	}

	user, err := a.authService.Me(r.Context(), caller.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]models.PublicUser{"user": user.Public()})
}
