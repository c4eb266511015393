package postgres

import (
	"context"
	"strings"
	"time"

	"customer/internal/domain/entity"
	"customer/internal/domain/repository"
	"customer/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// customerRepository implements the repository.CustomerRepository interface.
type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository is the constructor for customerRepository.
func NewCustomerRepository(db *gorm.DB) repository.CustomerRepository {
	return &customerRepository{
		db: db,
	}
}

// FindByID retrieves a customer by its store-assigned id.
func (repo *customerRepository) FindByID(ctx context.Context, id int64) (*entity.Customer, error) {
	var customerM model.CustomerModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&customerM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCustomerNotFound
		}

		return nil, errors.Wrap(err, "failed to find customer by ID")
	}

	return toCustomerDomain(&customerM), nil
}

// FindByEmail retrieves a customer by email address.
func (repo *customerRepository) FindByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	var customerM model.CustomerModel

	if err := repo.db.WithContext(ctx).
		Where("email = ?", email).
		First(&customerM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCustomerNotFound
		}

		return nil, errors.Wrap(err, "failed to find customer by email")
	}

	return toCustomerDomain(&customerM), nil
}

// Search retrieves customers matching the query with sorting and offset pagination.
func (repo *customerRepository) Search(ctx context.Context, query repository.SearchQuery) ([]*entity.Customer, error) {
	var customerModels []*model.CustomerModel

	tx := repo.db.WithContext(ctx).Model(&model.CustomerModel{})

	if text := strings.TrimSpace(query.FreeText); text != "" {
		pattern := "%" + text + "%"
		tx = tx.Where(
			"first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?",
			pattern, pattern, pattern,
		)
	}
	if query.Company != "" {
		tx = tx.Where("company = ?", query.Company)
	}

	sortBy := query.SortBy
	if !repository.ValidSortField(sortBy) {
		sortBy = repository.SortByID
	}
	direction := "ASC"
	if query.Descending {
		direction = "DESC"
	}
	tx = tx.Order(string(sortBy) + " " + direction)

	if query.Skip > 0 {
		tx = tx.Offset(query.Skip)
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	if err := tx.Find(&customerModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to search customers")
	}

	customers := make([]*entity.Customer, 0, len(customerModels))
	for _, customerM := range customerModels {
		customers = append(customers, toCustomerDomain(customerM))
	}

	return customers, nil
}

// Create persists a new customer row and backfills generated values.
func (repo *customerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	customerM := fromCustomerDomain(customer)
	customerM.Version = 1

	if err := repo.db.WithContext(ctx).Create(customerM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrEmailTaken
		}
		if isNotNullConstraintViolation(err) {
			return errors.Wrap(err, "missing required customer information")
		}

		return errors.Wrap(err, "failed to create customer")
	}

	// Update the entity with generated values
	customer.ID = customerM.ID
	customer.Version = customerM.Version
	customer.CreatedAt = customerM.CreatedAt
	customer.UpdatedAt = customerM.UpdatedAt

	return nil
}

// UpdateGuarded persists the user-editable fields with a compare-and-swap on
// (id, expectedVersion). The version bump happens in the same statement, so a
// concurrent writer can never slip between the check and the write.
func (repo *customerRepository) UpdateGuarded(ctx context.Context, customer *entity.Customer, expectedVersion int64) error {
	now := time.Now()

	result := repo.db.WithContext(ctx).
		Model(&model.CustomerModel{}).
		Where("id = ? AND version = ?", customer.ID, expectedVersion).
		Updates(map[string]any{
			"first_name":    customer.FirstName,
			"last_name":     customer.LastName,
			"email":         customer.Email,
			"company":       customer.Company,
			"phone":         customer.Phone,
			"address_line1": customer.AddressLine1,
			"address_line2": customer.AddressLine2,
			"postal_code":   customer.PostalCode,
			"city":          customer.City,
			"state":         customer.State,
			"country_code":  customer.CountryCode,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    now,
		})

	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return repository.ErrEmailTaken
		}

		return errors.Wrap(result.Error, "failed to update customer")
	}

	if result.RowsAffected == 0 {
		// Either the row is gone or somebody bumped the version first.
		var exists int64
		if err := repo.db.WithContext(ctx).
			Model(&model.CustomerModel{}).
			Where("id = ?", customer.ID).
			Count(&exists).Error; err != nil {
			return errors.Wrap(err, "failed to resolve guarded update miss")
		}
		if exists == 0 {
			return repository.ErrCustomerNotFound
		}

		return repository.ErrVersionMismatch
	}

	customer.Version = expectedVersion + 1
	customer.UpdatedAt = now

	return nil
}

// UpdateStatistics persists the derived statistics fields without a version
// guard. Only the order event reconciler calls this.
func (repo *customerRepository) UpdateStatistics(ctx context.Context, id int64, ordersCount int, lastOrderDate *time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.CustomerModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"orders_count":    ordersCount,
			"last_order_date": lastOrderDate,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update customer statistics")
	}

	if result.RowsAffected == 0 {
		return repository.ErrCustomerNotFound
	}

	return nil
}

// Delete removes the customer and returns the removed snapshot.
func (repo *customerRepository) Delete(ctx context.Context, id int64) (*entity.Customer, error) {
	var customerM model.CustomerModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&customerM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCustomerNotFound
		}

		return nil, errors.Wrap(err, "failed to load customer for delete")
	}

	result := repo.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.CustomerModel{})
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to delete customer")
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrCustomerNotFound
	}

	return toCustomerDomain(&customerM), nil
}

// --- Mapper Functions ---

// toCustomerDomain converts a GORM CustomerModel to a domain Customer entity.
func toCustomerDomain(data *model.CustomerModel) *entity.Customer {
	if data == nil {
		return nil
	}

	return &entity.Customer{
		ID:            data.ID,
		FirstName:     data.FirstName,
		LastName:      data.LastName,
		Email:         data.Email,
		Company:       data.Company,
		Phone:         data.Phone,
		AddressLine1:  data.AddressLine1,
		AddressLine2:  data.AddressLine2,
		PostalCode:    data.PostalCode,
		City:          data.City,
		State:         data.State,
		CountryCode:   data.CountryCode,
		OrdersCount:   data.OrdersCount,
		LastOrderDate: data.LastOrderDate,
		Version:       data.Version,
		CreatedAt:     data.CreatedAt,
		UpdatedAt:     data.UpdatedAt,
	}
}

// fromCustomerDomain converts a domain Customer entity to a GORM CustomerModel.
func fromCustomerDomain(data *entity.Customer) *model.CustomerModel {
	if data == nil {
		return nil
	}

	return &model.CustomerModel{
		ID:            data.ID,
		FirstName:     data.FirstName,
		LastName:      data.LastName,
		Email:         data.Email,
		Company:       data.Company,
		Phone:         data.Phone,
		AddressLine1:  data.AddressLine1,
		AddressLine2:  data.AddressLine2,
		PostalCode:    data.PostalCode,
		City:          data.City,
		State:         data.State,
		CountryCode:   data.CountryCode,
		OrdersCount:   data.OrdersCount,
		LastOrderDate: data.LastOrderDate,
		Version:       data.Version,
		CreatedAt:     data.CreatedAt,
		UpdatedAt:     data.UpdatedAt,
	}
}
