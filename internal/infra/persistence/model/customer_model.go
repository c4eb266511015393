package model

import (
	"time"
)

// CustomerModel mirrors the 'customers' table. PostgreSQL assigns ids from
// the table sequence; the email column carries the uniqueness guarantee.
type CustomerModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FirstName string `gorm:"type:varchar(100)"`
	LastName  string `gorm:"type:varchar(100)"`
	Email     string `gorm:"type:varchar(255);unique;not null"`
	Company   string `gorm:"type:varchar(255)"`
	Phone     string `gorm:"type:varchar(50)"`

	AddressLine1 string `gorm:"type:varchar(255)"`
	AddressLine2 string `gorm:"type:varchar(255)"`
	PostalCode   string `gorm:"type:varchar(20)"`
	City         string `gorm:"type:varchar(100)"`
	State        string `gorm:"type:varchar(100)"`
	CountryCode  string `gorm:"type:char(2)"`

	OrdersCount   int        `gorm:"not null;default:0"`
	LastOrderDate *time.Time

	// Version is the optimistic-concurrency token; writes guard on it and
	// bump it atomically in the same statement.
	Version int64 `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (CustomerModel) TableName() string {
	return "customers"
}
