// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"
)

// Customer is the aggregate root of this service. Identity is a
// store-assigned integer id; the email address is unique across all
// customers. The statistics fields (OrdersCount, LastOrderDate) are
// mutated only by the order event reconciler, never by user-initiated
// updates.
type Customer struct {
	ID        int64  // Store-assigned identifier, immutable after creation.
	FirstName string // Given name; at least one of FirstName/LastName is required at creation.
	LastName  string // Family name.
	Email     string // Primary contact email, unique across all customers.
	Company   string
	Phone     string

	AddressLine1 string
	AddressLine2 string
	PostalCode   string
	City         string
	State        string
	CountryCode  string // ISO 3166-1 alpha-2, upper-cased and truncated on write.

	// Derived statistics, owned by the order event reconciler.
	OrdersCount   int
	LastOrderDate *time.Time

	// Version is the optimistic-concurrency token. It starts at 1 and is
	// incremented by exactly 1 on every successful guarded update.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasName reports whether the customer carries at least one name component.
// Creation requires this to hold.
func (c *Customer) HasName() bool {
	return strings.TrimSpace(c.FirstName) != "" || strings.TrimSpace(c.LastName) != ""
}

// NormalizeCountryCode trims, upper-cases and truncates a raw country code
// to the two-letter ISO 3166-1 alpha-2 form stored on the row.
func NormalizeCountryCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) > 2 {
		code = code[:2]
	}

	return code
}
