package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name       string             `json:"name" bson:"name"`
	Phone      string             `json:"phone" bson:"phone"`
	Email      string             `json:"email,omitempty" bson:"email,omitempty"`
	Password   string             `json:"-" bson:"password"`
	IsAdmin    bool               `json:"is_admin" bson:"is_admin"`
	IsBlocked  bool               `json:"is_blocked" bson:"is_blocked"`
	IsVerified bool               `json:"is_verified" bson:"is_verified"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// PublicUser is the shape returned alongside a session token.
type PublicUser struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Email   *string `json:"email"`
	IsAdmin bool    `json:"is_admin"`
}

func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:      u.ID.Hex(),
		Name:    u.Name,
		Phone:   u.Phone,
		IsAdmin: u.IsAdmin,
	}
	if u.Email != "" {
		email := u.Email
		p.Email = &email
	}
	return p
}

type BlockUserRequest struct {
	IsBlocked *bool `json:"is_blocked"`
}
