package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ActiveStatuses hold a slot.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo encodes pending -> confirmed -> completed, with cancellation
// allowed from either active state.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

type Appointment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	Date      time.Time          `json:"date" bson:"date"`
	TimeSlot  string             `json:"time_slot" bson:"time_slot"`
	Status    AppointmentStatus  `json:"status" bson:"status"`
	Active    bool               `json:"-" bson:"active"`
	PainType  string             `json:"pain_type,omitempty" bson:"pain_type,omitempty"`
	Reason    string             `json:"reason,omitempty" bson:"reason,omitempty"`
	Notes     string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// AppointmentOwner is the slice of the owning user shown to the admin.
type AppointmentOwner struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	IsBlocked bool   `json:"is_blocked"`
}

type AppointmentWithUser struct {
	Appointment
	User *AppointmentOwner `json:"user,omitempty"`
}

type BookingRequest struct {
	Date     string `json:"date" validate:"required"`
	TimeSlot string `json:"time_slot" validate:"required"`
	PainType string `json:"pain_type,omitempty"`
	Reason   string `json:"reason,omitempty"`
	// Phone optionally overrides where the confirmation SMS goes.
	Phone string `json:"phone,omitempty"`
}

type AppointmentUpdate struct {
	Status *AppointmentStatus `json:"status,omitempty"`
	Notes  *string            `json:"notes,omitempty"`
}

// AppointmentFilter narrows appointment queries. Zero values mean "any".
type AppointmentFilter struct {
	UserID      *primitive.ObjectID
	Date        *time.Time
	From        *time.Time
	TimeSlot    string
	Status      AppointmentStatus
	ActiveOnly  bool
	NewestFirst bool
}

type Slot struct {
	Time     string `json:"time"`
	IsBooked bool   `json:"is_booked"`
}

type DashboardStats struct {
	TotalUsers           int64 `json:"total_users"`
	TodayAppointments    int64 `json:"today_appointments"`
	UpcomingAppointments int64 `json:"upcoming_appointments"`
	PendingAppointments  int64 `json:"pending_appointments"`
	TotalAppointments    int64 `json:"total_appointments"`
}
