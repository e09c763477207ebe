package users

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// UserDTO is the member shape nested in team payloads.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email     string
	FirstName string
	LastName  string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// ToModel uses the normalized email as the username, matching how accounts
// are registered.
func (c CreateUserDTO) ToModel() *models.User {
	email := NormalizeEmail(c.Email)
	return &models.User{
		Username:  email,
		Email:     email,
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
	}
}

// NormalizeEmail lowercases and trims an address before lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
