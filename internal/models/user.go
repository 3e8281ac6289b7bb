package models

import "time"

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleBuyer     UserRole = "buyer"
	RoleWarehouse UserRole = "warehouse"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleBuyer, RoleWarehouse:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         UserRole  `gorm:"size:20;not null" json:"role"`
	Active       bool      `gorm:"not null" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
