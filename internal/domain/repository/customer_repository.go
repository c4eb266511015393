// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"customer/internal/domain/entity"
)

// Sentinel errors for customer persistence. The application layer inspects
// these and maps them to the business error taxonomy.
var (
	// ErrCustomerNotFound is returned when the referenced customer id or
	// email does not exist at operation time.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrEmailTaken is returned when a write violates the unique index on
	// the email column. The write fails atomically; no partial state is
	// left behind.
	ErrEmailTaken = errors.New("email already taken")

	// ErrVersionMismatch is returned when a guarded update observes a
	// stored version different from the expected one. The row is left
	// untouched.
	ErrVersionMismatch = errors.New("customer version mismatch")
)

// SortField enumerates the columns a customer listing may be ordered by.
type SortField string

// Sortable columns. Anything outside this set is rejected at the
// caller-facing boundary before it reaches the repository.
const (
	SortByID        SortField = "id"
	SortByFirstName SortField = "first_name"
	SortByLastName  SortField = "last_name"
	SortByEmail     SortField = "email"
	SortByCompany   SortField = "company"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

// ValidSortField reports whether s belongs to the fixed enumerated set.
func ValidSortField(s SortField) bool {
	switch s {
	case SortByID, SortByFirstName, SortByLastName, SortByEmail,
		SortByCompany, SortByCreatedAt, SortByUpdatedAt:
		return true
	default:
		return false
	}
}

// SearchQuery describes a filtered, sorted, offset-paginated listing.
type SearchQuery struct {
	// FreeText matches first_name, last_name and email with a
	// case-insensitive substring comparison. Empty means no filter.
	FreeText string

	// Company is an exact match filter. Empty means no filter.
	Company string

	SortBy     SortField
	Descending bool

	Skip  int
	Limit int
}

// CustomerRepository defines the standard operations for customer persistence.
// The application layer depends on this interface, not the concrete implementation.
type CustomerRepository interface {
	// FindByID retrieves a single customer by its store-assigned id.
	FindByID(ctx context.Context, id int64) (*entity.Customer, error)

	// FindByEmail retrieves a single customer by email address.
	FindByEmail(ctx context.Context, email string) (*entity.Customer, error)

	// Search retrieves customers matching the query.
	Search(ctx context.Context, query SearchQuery) ([]*entity.Customer, error)

	// Create persists a new customer. On success the entity is updated in
	// place with the generated id, version 1 and timestamps.
	Create(ctx context.Context, customer *entity.Customer) error

	// UpdateGuarded persists the customer's user-editable fields with an
	// atomic compare-and-swap on (id, expectedVersion). The store
	// increments the version by exactly 1 as part of the guarded write.
	// On success the entity reflects the new version and updated_at.
	UpdateGuarded(ctx context.Context, customer *entity.Customer, expectedVersion int64) error

	// UpdateStatistics persists the derived statistics fields without a
	// version guard. Used only by the order event reconciler.
	UpdateStatistics(ctx context.Context, id int64, ordersCount int, lastOrderDate *time.Time) error

	// Delete removes the customer and returns the removed snapshot so
	// callers can echo identifying data back.
	Delete(ctx context.Context, id int64) (*entity.Customer, error)
}
