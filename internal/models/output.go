package models

import "time"

// Output records goods issued out of inventory to a destination.
type Output struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"size:20;index" json:"code"`
	Destination string    `gorm:"size:150;not null;index" json:"destination"`
	Reason      string    `gorm:"size:150" json:"reason"`
	Date        time.Time `gorm:"index;not null" json:"date"`
	IssuedByID  uint      `gorm:"index" json:"issued_by_id"`
	Note        string    `gorm:"size:255" json:"note"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Details []OutputDetail `gorm:"foreignKey:OutputID;constraint:OnDelete:CASCADE" json:"details"`
}

type OutputDetail struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OutputID  uint      `gorm:"index;not null" json:"output_id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  float64   `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
