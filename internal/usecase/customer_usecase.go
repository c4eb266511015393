// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"customer/internal/domain/entity"
	"customer/internal/domain/repository"
)

// --- Input DTOs ---

// CreateCustomerInput defines the data required to create a new customer.
type CreateCustomerInput struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
	Phone     string

	AddressLine1 string
	AddressLine2 string
	PostalCode   string
	City         string
	State        string
	CountryCode  string
}

// UpdateCustomerInput defines a partial update. Nil fields are left
// untouched on the row. ExpectedVersion, when supplied, is the
// optimistic-lock token the caller read; a mismatch fails the update
// without touching the row.
type UpdateCustomerInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Company   *string
	Phone     *string

	AddressLine1 *string
	AddressLine2 *string
	PostalCode   *string
	City         *string
	State        *string
	CountryCode  *string

	ExpectedVersion *int64
}

// ListCustomersInput defines filtering, sorting and offset pagination for a
// customer listing. The delivery layer validates and clamps the values
// before they reach here.
type ListCustomersInput struct {
	FreeText string
	Company  string

	SortBy     repository.SortField
	Descending bool

	Skip  int
	Limit int
}

// CustomerUsecase defines the interface for customer-related business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type CustomerUsecase interface {
	// GetCustomer fetches by id; fails with ErrCustomerNotFound if absent.
	GetCustomer(ctx context.Context, id int64) (*entity.Customer, error)

	// GetCustomerByEmail fetches by email. Absence is not an error: the
	// result is (nil, nil).
	GetCustomerByEmail(ctx context.Context, email string) (*entity.Customer, error)

	// ListCustomers returns customers matching the input.
	ListCustomers(ctx context.Context, input ListCustomersInput) ([]*entity.Customer, error)

	// CreateCustomer persists a new customer and emits customer.created.
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*entity.Customer, error)

	// UpdateCustomer applies a partial, optionally version-guarded update
	// and emits customer.updated.
	UpdateCustomer(ctx context.Context, id int64, input UpdateCustomerInput) (*entity.Customer, error)

	// DeleteCustomer removes the customer, emits customer.deleted and
	// returns the removed snapshot.
	DeleteCustomer(ctx context.Context, id int64) (*entity.Customer, error)
}
