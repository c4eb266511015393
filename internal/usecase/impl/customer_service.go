// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"

	deliverycontext "customer/internal/delivery/context"
	"customer/internal/domain/entity"
	domainerrors "customer/internal/domain/errors"
	"customer/internal/domain/repository"
	"customer/internal/domain/service"
	"customer/internal/usecase"

	"github.com/pkg/errors"
)

// customerService implements the CustomerUsecase interface.
type customerService struct {
	txManager repository.TransactionManager
	publisher service.EventPublisher
	logger    *slog.Logger
}

// NewCustomerService is the constructor for customerService.
func NewCustomerService(
	txManager repository.TransactionManager,
	publisher service.EventPublisher,
	logger *slog.Logger,
) usecase.CustomerUsecase {
	return &customerService{
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
	}
}

// GetCustomer retrieves a single customer by id.
func (srv *customerService) GetCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	srv.logger.Debug("Getting customer", "customerID", id)

	var customer *entity.Customer

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		found, err := customerRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				return errors.Wrap(domainerrors.ErrCustomerNotFound, "customer not found")
			}

			return errors.Wrap(err, "failed to find customer")
		}
		customer = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	return customer, nil
}

// GetCustomerByEmail retrieves a single customer by email. Absence is not an
// error; the result is (nil, nil) so callers can answer "no match" cleanly.
func (srv *customerService) GetCustomerByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	srv.logger.Debug("Getting customer by email", "email", email)

	var customer *entity.Customer

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		found, err := customerRepo.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				return nil
			}

			return errors.Wrap(err, "failed to find customer by email")
		}
		customer = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	return customer, nil
}

// ListCustomers returns customers matching the filter, sorted and paginated.
func (srv *customerService) ListCustomers(ctx context.Context, input usecase.ListCustomersInput) ([]*entity.Customer, error) {
	var customers []*entity.Customer

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		found, err := customerRepo.Search(ctx, repository.SearchQuery{
			FreeText:   input.FreeText,
			Company:    input.Company,
			SortBy:     input.SortBy,
			Descending: input.Descending,
			Skip:       input.Skip,
			Limit:      input.Limit,
		})
		if err != nil {
			return errors.Wrap(err, "failed to search customers")
		}
		customers = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	return customers, nil
}

// CreateCustomer persists a new customer and emits customer.created.
func (srv *customerService) CreateCustomer(ctx context.Context, input usecase.CreateCustomerInput) (*entity.Customer, error) {
	srv.logger.Info("Creating customer", "email", input.Email)

	customer := &entity.Customer{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		Company:      input.Company,
		Phone:        input.Phone,
		AddressLine1: input.AddressLine1,
		AddressLine2: input.AddressLine2,
		PostalCode:   input.PostalCode,
		City:         input.City,
		State:        input.State,
		CountryCode:  entity.NormalizeCountryCode(input.CountryCode),
	}

	if customer.Email == "" {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed, "email is required")
	}
	if !customer.HasName() {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed, "first_name or last_name is required")
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		if err := customerRepo.Create(ctx, customer); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				return errors.Wrap(domainerrors.ErrEmailAlreadyExists, "email already exists")
			}

			return errors.Wrap(err, "failed to create customer")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Publish after commit; the row is the source of truth and the event is
	// best-effort notification.
	srv.publish(ctx, service.NewCustomerCreatedEvent(customer))

	return customer, nil
}

// UpdateCustomer applies a partial, optionally version-guarded update and
// emits customer.updated.
func (srv *customerService) UpdateCustomer(ctx context.Context, id int64, input usecase.UpdateCustomerInput) (*entity.Customer, error) {
	srv.logger.Info("Updating customer", "customerID", id)

	var customer *entity.Customer

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		// 1. Find the customer
		found, err := customerRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				return errors.Wrap(domainerrors.ErrCustomerNotFound, "customer not found")
			}

			return errors.Wrap(err, "failed to find customer")
		}

		// 2. Reject a stale caller-supplied version before touching the row
		if input.ExpectedVersion != nil && *input.ExpectedVersion != found.Version {
			return errors.Wrap(domainerrors.ErrConcurrencyConflict, "stale expected version")
		}

		// 3. Apply only the fields present in the payload
		applyCustomerUpdate(found, &input)
		if found.Email == "" {
			return errors.Wrap(domainerrors.ErrValidationFailed, "email cannot be emptied")
		}

		// 4. Guarded write; the store bumps version by exactly 1
		if err := customerRepo.UpdateGuarded(ctx, found, found.Version); err != nil {
			switch {
			case errors.Is(err, repository.ErrVersionMismatch):
				return errors.Wrap(domainerrors.ErrConcurrencyConflict, "customer modified concurrently")
			case errors.Is(err, repository.ErrEmailTaken):
				return errors.Wrap(domainerrors.ErrEmailAlreadyExists, "email already exists")
			case errors.Is(err, repository.ErrCustomerNotFound):
				return errors.Wrap(domainerrors.ErrCustomerNotFound, "customer not found")
			}

			return errors.Wrap(err, "failed to update customer")
		}
		customer = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.publish(ctx, service.NewCustomerUpdatedEvent(customer))

	return customer, nil
}

// DeleteCustomer removes the customer, emits customer.deleted and returns
// the removed snapshot.
func (srv *customerService) DeleteCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	srv.logger.Info("Deleting customer", "customerID", id)

	var customer *entity.Customer

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		removed, err := customerRepo.Delete(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				return errors.Wrap(domainerrors.ErrCustomerNotFound, "customer not found")
			}

			return errors.Wrap(err, "failed to delete customer")
		}
		customer = removed

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.publish(ctx, service.NewCustomerDeletedEvent(customer.ID))

	return customer, nil
}

// publish sends a domain event after a committed mutation. Publish failures
// are logged and swallowed; they never fail the mutation.
func (srv *customerService) publish(ctx context.Context, event *service.Event) {
	event.RequestID = deliverycontext.GetRequestIDFromContext(ctx)

	if err := srv.publisher.Publish(ctx, event); err != nil {
		srv.logger.Error("failed to publish domain event",
			"routingKey", event.RoutingKey,
			"error", err,
		)
	}
}

// applyCustomerUpdate copies the non-nil fields of the input onto the entity.
func applyCustomerUpdate(customer *entity.Customer, input *usecase.UpdateCustomerInput) {
	if input.FirstName != nil {
		customer.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		customer.LastName = *input.LastName
	}
	if input.Email != nil {
		customer.Email = *input.Email
	}
	if input.Company != nil {
		customer.Company = *input.Company
	}
	if input.Phone != nil {
		customer.Phone = *input.Phone
	}
	if input.AddressLine1 != nil {
		customer.AddressLine1 = *input.AddressLine1
	}
	if input.AddressLine2 != nil {
		customer.AddressLine2 = *input.AddressLine2
	}
	if input.PostalCode != nil {
		customer.PostalCode = *input.PostalCode
	}
	if input.City != nil {
		customer.City = *input.City
	}
	if input.State != nil {
		customer.State = *input.State
	}
	if input.CountryCode != nil {
		customer.CountryCode = entity.NormalizeCountryCode(*input.CountryCode)
	}
}
