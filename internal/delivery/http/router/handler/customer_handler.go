// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"customer/config"
	"customer/internal/delivery/http/response"
	"customer/internal/domain/entity"
	"customer/internal/domain/repository"
	"customer/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// CustomerHandler holds dependencies for customer-related handlers.
type CustomerHandler struct {
	uc     usecase.CustomerUsecase
	cfg    *config.Config
	logger *slog.Logger
}

// NewCustomerHandler is the constructor for CustomerHandler, injected by Fx.
func NewCustomerHandler(uc usecase.CustomerUsecase, cfg *config.Config, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		uc:     uc,
		cfg:    cfg,
		logger: logger,
	}
}

// --- Request / response shapes ---

// CreateCustomerRequest is the JSON body for POST /api/customers.
type CreateCustomerRequest struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Company   string `json:"company" validate:"max=255"`
	Phone     string `json:"phone" validate:"max=50"`

	AddressLine1 string `json:"address_line1" validate:"max=255"`
	AddressLine2 string `json:"address_line2" validate:"max=255"`
	PostalCode   string `json:"postal_code" validate:"max=20"`
	City         string `json:"city" validate:"max=100"`
	State        string `json:"state" validate:"max=100"`
	CountryCode  string `json:"country_code" validate:"max=10"`
}

// UpdateCustomerRequest is the JSON body for PUT /api/customers/:id.
// Absent fields are left untouched.
type UpdateCustomerRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Company   *string `json:"company" validate:"omitempty,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`

	AddressLine1 *string `json:"address_line1" validate:"omitempty,max=255"`
	AddressLine2 *string `json:"address_line2" validate:"omitempty,max=255"`
	PostalCode   *string `json:"postal_code" validate:"omitempty,max=20"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	State        *string `json:"state" validate:"omitempty,max=100"`
	CountryCode  *string `json:"country_code" validate:"omitempty,max=10"`
}

// CustomerResponse is the JSON rendering of a customer.
type CustomerResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Phone     string `json:"phone"`

	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	PostalCode   string `json:"postal_code"`
	City         string `json:"city"`
	State        string `json:"state"`
	CountryCode  string `json:"country_code"`

	OrdersCount   int        `json:"orders_count"`
	LastOrderDate *time.Time `json:"last_order_date"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCustomerResponse(c *entity.Customer) *CustomerResponse {
	if c == nil {
		return nil
	}

	return &CustomerResponse{
		ID:            c.ID,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		Company:       c.Company,
		Phone:         c.Phone,
		AddressLine1:  c.AddressLine1,
		AddressLine2:  c.AddressLine2,
		PostalCode:    c.PostalCode,
		City:          c.City,
		State:         c.State,
		CountryCode:   c.CountryCode,
		OrdersCount:   c.OrdersCount,
		LastOrderDate: c.LastOrderDate,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// --- Handlers ---

// GetCustomer handles GET /api/customers/:id.
func (h *CustomerHandler) GetCustomer(c echo.Context) error {
	id, err := parseCustomerID(c)
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Customer id must be an integer")
	}

	customer, err := h.uc.GetCustomer(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toCustomerResponse(customer), "Customer retrieved successfully")
}

// GetCustomerByEmail handles GET /api/customers/by-email?email=...
// Absence is not an error; the data field is simply null.
func (h *CustomerHandler) GetCustomerByEmail(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return response.BadRequest(c, "INVALID_INPUT", "email query parameter is required")
	}

	customer, err := h.uc.GetCustomerByEmail(c.Request().Context(), email)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toCustomerResponse(customer), "Customer lookup completed")
}

// ListCustomers handles GET /api/customers with filtering, sorting and
// offset pagination. skip and limit bounds are enforced here, not in the
// core.
func (h *CustomerHandler) ListCustomers(c echo.Context) error {
	input := usecase.ListCustomersInput{
		FreeText: c.QueryParam("q"),
		Company:  c.QueryParam("company"),
		SortBy:   repository.SortByID,
		Skip:     0,
		Limit:    h.cfg.List.DefaultLimit,
	}

	if raw := c.QueryParam("sort_by"); raw != "" {
		sortBy := repository.SortField(raw)
		if !repository.ValidSortField(sortBy) {
			return response.BadRequest(c, "INVALID_SORT_FIELD", "Unknown sort field: "+raw)
		}
		input.SortBy = sortBy
	}

	switch order := c.QueryParam("order"); order {
	case "", "asc":
	case "desc":
		input.Descending = true
	default:
		return response.BadRequest(c, "INVALID_SORT_ORDER", "order must be asc or desc")
	}

	if raw := c.QueryParam("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return response.BadRequest(c, "INVALID_PAGINATION", "skip must be a non-negative integer")
		}
		input.Skip = skip
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return response.BadRequest(c, "INVALID_PAGINATION", "limit must be an integer")
		}
		// Clamp instead of rejecting; callers asking for too much get the cap.
		if limit < 1 {
			limit = 1
		}
		if limit > h.cfg.List.MaxLimit {
			limit = h.cfg.List.MaxLimit
		}
		input.Limit = limit
	}

	customers, err := h.uc.ListCustomers(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}

	items := make([]*CustomerResponse, 0, len(customers))
	for _, customer := range customers {
		items = append(items, toCustomerResponse(customer))
	}

	return response.Success(c, http.StatusOK, items, "Customers retrieved successfully")
}

// CreateCustomer handles POST /api/customers.
func (h *CustomerHandler) CreateCustomer(c echo.Context) error {
	var req CreateCustomerRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid customer payload")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	customer, err := h.uc.CreateCustomer(c.Request().Context(), usecase.CreateCustomerInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Company:      req.Company,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		PostalCode:   req.PostalCode,
		City:         req.City,
		State:        req.State,
		CountryCode:  req.CountryCode,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, toCustomerResponse(customer), "Customer created successfully")
}

// UpdateCustomer handles PUT /api/customers/:id. The optimistic-lock token
// arrives via the If-Match header or the expected_version query parameter;
// a token that is not a valid integer is a request-shape 400, never a
// conflict.
func (h *CustomerHandler) UpdateCustomer(c echo.Context) error {
	id, err := parseCustomerID(c)
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Customer id must be an integer")
	}

	expectedVersion, ok := parseExpectedVersion(c)
	if !ok {
		return response.BadRequest(c, "INVALID_VERSION", "expected_version must be an integer")
	}

	var req UpdateCustomerRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid customer payload")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	customer, err := h.uc.UpdateCustomer(c.Request().Context(), id, usecase.UpdateCustomerInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Company:         req.Company,
		Phone:           req.Phone,
		AddressLine1:    req.AddressLine1,
		AddressLine2:    req.AddressLine2,
		PostalCode:      req.PostalCode,
		City:            req.City,
		State:           req.State,
		CountryCode:     req.CountryCode,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toCustomerResponse(customer), "Customer updated successfully")
}

// DeleteCustomer handles DELETE /api/customers/:id and echoes back the
// removed snapshot.
func (h *CustomerHandler) DeleteCustomer(c echo.Context) error {
	id, err := parseCustomerID(c)
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Customer id must be an integer")
	}

	customer, err := h.uc.DeleteCustomer(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toCustomerResponse(customer), "Customer deleted successfully")
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"}, "Service is healthy")
}

// --- Helpers ---

func parseCustomerID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// parseExpectedVersion reads the optimistic-lock token from If-Match (ETag
// quotes tolerated) or the expected_version query parameter. Returns
// (nil, true) when no token was supplied and (nil, false) when a token was
// supplied but is not an integer.
func parseExpectedVersion(c echo.Context) (*int64, bool) {
	raw := strings.Trim(c.Request().Header.Get("If-Match"), `"`)
	if raw == "" {
		raw = c.QueryParam("expected_version")
	}
	if raw == "" {
		return nil, true
	}

	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}

	return &version, true
}
