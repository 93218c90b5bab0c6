package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusCompleted, StatusCancelled},
		StatusCompleted: nil,
		StatusCancelled: nil,
	}
	all := []AppointmentStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

	for from, tos := range allowed {
		for _, to := range all {
			want := false
			for _, ok := range tos {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, AppointmentStatus("rescheduled").Valid())
}

func TestPublicUserOmitsEmptyEmail(t *testing.T) {
	u := &User{Name: "Asha", Phone: "+919876543210"}
	assert.Nil(t, u.Public().Email)

	u.Email = "asha@example.com"
	if assert.NotNil(t, u.Public().Email) {
		assert.Equal(t, "asha@example.com", *u.Public().Email)
	}
}
