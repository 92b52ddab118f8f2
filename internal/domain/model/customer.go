package model

import (
	"time"

	"telegram-bot-fleet/internal/domain"

	"github.com/google/uuid"
)

// Customer is a domain entity representing one tenant whose bot we operate.
// Token is the plaintext bot credential; it is encrypted at rest and only
// decrypted at the store boundary.
type Customer struct {
	ID          string
	DisplayName string
	Token       string
	UpdatedAt   time.Time
}

func NewCustomer(id, displayName, token string) (*Customer, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if displayName == "" {
		return nil, domain.ErrInvalidArgument
	}
	if token == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Customer{
		ID:          id,
		DisplayName: displayName,
		Token:       token,
		UpdatedAt:   time.Now(),
	}, nil
}

func (c *Customer) IsZero() bool { return c == nil || c.ID == "" }
