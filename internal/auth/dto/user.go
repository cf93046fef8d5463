package dto

import (
	"time"

	"github.com/adityarizkyr/session-service/internal/auth/domain"
)

type UserOutput struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserOutput(identity *domain.Identity) *UserOutput {
	return &UserOutput{
		ID:        identity.ID,
		Email:     identity.Email,
		Role:      identity.Role.String(),
		CreatedAt: identity.CreatedAt,
	}
}
