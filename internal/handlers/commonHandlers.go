package handlers

import (
	"net/http"
	"time"

	"clinicbook/internal/database"
	"clinicbook/internal/utils"
)

type CommonHandler struct {
	db         database.Service
	clinicName string
}

func NewCommonHandler(db database.Service, clinicName string) *CommonHandler {
	return &CommonHandler{db: db, clinicName: clinicName}
}

func (h *CommonHandler) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": h.clinicName + " API",
		"health":  "/api/health",
	})
}

// HealthHandler always answers 200; the database state is reported inside.
func (h *CommonHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "OK",
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.db != nil {
		resp["database"] = h.db.Health()
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
