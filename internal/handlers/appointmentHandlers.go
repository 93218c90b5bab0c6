package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"clinicbook/internal/middlewares"
	"clinicbook/internal/models"
	"clinicbook/internal/services"
	"clinicbook/internal/utils"
)

type AppointmentHandler struct {
	appointmentService services.AppointmentService
}

func NewAppointmentHandler(appointmentService services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointmentService: appointmentService}
}

type appointmentResponse struct {
	Message     string              `json:"message"`
	Appointment *models.Appointment `json:"appointment"`
}

func (h *AppointmentHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.appointmentService.GetSlots(r.Context(), mux.Vars(r)["date"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string][]models.Slot{"slots": slots})
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "No token, authorization denied", http.StatusUnauthorized)
		return
	}

	var req models.BookingRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	appt, err := h.appointmentService.Book(r.Context(), user, req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, appointmentResponse{Message: "Appointment booked successfully", Appointment: appt})
}

func (h *AppointmentHandler) MyAppointments(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "No token, authorization denied", http.StatusUnauthorized)
		return
	}

	appts, err := h.appointmentService.ListMine(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string][]models.Appointment{"appointments": appts})
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.UserFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "No token, authorization denied", http.StatusUnauthorized)
		return
	}

	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	appt, err := h.appointmentService.Cancel(r.Context(), user, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, appointmentResponse{Message: "Appointment cancelled successfully", Appointment: appt})
}
