package models

import "time"

type RequirementStatus string

const (
	RequirementPending  RequirementStatus = "pending"
	RequirementApproved RequirementStatus = "approved"
	RequirementRejected RequirementStatus = "rejected"
	RequirementOrdered  RequirementStatus = "ordered"
)

// Requirement is an internal purchase request raised by a department.
type Requirement struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Code          string            `gorm:"size:20;index" json:"code"`
	Department    string            `gorm:"size:100;not null;index" json:"department"`
	RequestedByID uint              `gorm:"index;not null" json:"requested_by_id"`
	RequestedBy   *User             `gorm:"foreignKey:RequestedByID" json:"requested_by,omitempty"`
	Date          time.Time         `gorm:"index;not null" json:"date"`
	NeededBy      *time.Time        `json:"needed_by"`
	Status        RequirementStatus `gorm:"size:20;not null;index" json:"status"`
	Note          string            `gorm:"size:255" json:"note"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`

	Details []RequirementDetail `gorm:"foreignKey:RequirementID;constraint:OnDelete:CASCADE" json:"details"`
}

type RequirementDetail struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RequirementID uint      `gorm:"index;not null" json:"requirement_id"`
	ProductID     uint      `gorm:"index;not null" json:"product_id"`
	Product       *Product  `json:"product,omitempty"`
	Quantity      float64   `gorm:"not null" json:"quantity"`
	Note          string    `gorm:"size:255" json:"note"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
