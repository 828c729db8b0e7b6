package model

import (
	"time"

	"lean-protocol-billing/internal/domain"
)

// Admin is a back-office operator. Deactivation is guarded so at least one
// active admin always remains.
type Admin struct {
	ID        string
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewAdmin(id, email, name string) (*Admin, error) {
	if id == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Admin{ID: id, Email: email, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}, nil
}
