package handlers

import (
	"net/http"

	"clinicbook/internal/models"
	"clinicbook/internal/services"
	"clinicbook/internal/utils"
)

type AdminHandler struct {
	adminService services.AdminService
}

func NewAdminHandler(adminService services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appts, err := h.adminService.ListAppointments(r.Context(), q.Get("date"), q.Get("status"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string][]models.AppointmentWithUser{"appointments": appts})
}

func (h *AdminHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var update models.AppointmentUpdate
	if err := utils.DecodeJSON(w, r, &update); err != nil {
		return
	}

	appt, err := h.adminService.UpdateAppointment(r.Context(), id, update)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, appointmentResponse{Message: "Appointment updated successfully", Appointment: appt})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string][]models.User{"users": users})
}

func (h *AdminHandler) SetUserBlocked(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var req models.BlockUserRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}
	if req.IsBlocked == nil {
		utils.SendJSONError(w, "is_blocked is required", http.StatusBadRequest)
		return
	}

	user, err := h.adminService.SetUserBlocked(r.Context(), id, *req.IsBlocked)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	msg := "User unblocked successfully"
	if user.IsBlocked {
		msg = "User blocked successfully"
	}
	utils.RespondWithJSON(w, http.StatusOK, struct {
		Message string       `json:"message"`
		User    *models.User `json:"user"`
	}{msg, user})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}
