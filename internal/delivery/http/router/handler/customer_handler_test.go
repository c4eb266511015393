package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"customer/config"
	"customer/internal/delivery/http/response"
	"customer/internal/delivery/http/validator"
	"customer/internal/domain/entity"
	"customer/internal/domain/repository"
	mocksusecase "customer/internal/mocks/usecase"
	"customer/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestCustomerHandler(t *testing.T) (*CustomerHandler, *mocksusecase.MockCustomerUsecase, *echo.Echo) {
	t.Helper()

	cfg := &config.Config{
		List: &config.ListConfig{DefaultLimit: 10, MaxLimit: 100},
	}

	uc := mocksusecase.NewMockCustomerUsecase(t)
	h := NewCustomerHandler(uc, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	e := echo.New()
	e.Validator = validator.New()

	return h, uc, e
}

func newJSONRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return resp
}

func TestCustomerHandler_GetCustomer(t *testing.T) {
	t.Parallel()

	t.Run("returns the customer", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		uc.EXPECT().
			GetCustomer(mock.Anything, int64(5)).
			Return(&entity.Customer{ID: 5, Email: "five@example.com", Version: 2}, nil)

		req := newJSONRequest(http.MethodGet, "/api/customers/5", "")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/customers/:id")
		c.SetParamNames("id")
		c.SetParamValues("5")

		require.NoError(t, h.GetCustomer(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(5), data["id"])
		assert.Equal(t, "five@example.com", data["email"])
		assert.Equal(t, float64(2), data["version"])
	})

	t.Run("non-integer id is a request-shape 400", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		req := newJSONRequest(http.MethodGet, "/api/customers/abc", "")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("abc")

		require.NoError(t, h.GetCustomer(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_ID", resp.Error.Code)
		uc.AssertNotCalled(t, "GetCustomer", mock.Anything, mock.Anything)
	})
}

func TestCustomerHandler_GetCustomerByEmail(t *testing.T) {
	t.Parallel()

	t.Run("absence yields success with null data", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		uc.EXPECT().
			GetCustomerByEmail(mock.Anything, "nobody@example.com").
			Return(nil, nil)

		req := newJSONRequest(http.MethodGet, "/api/customers/by-email?email="+url.QueryEscape("nobody@example.com"), "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.GetCustomerByEmail(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Data)
	})

	t.Run("missing email parameter is a 400", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		req := newJSONRequest(http.MethodGet, "/api/customers/by-email", "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.GetCustomerByEmail(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		uc.AssertNotCalled(t, "GetCustomerByEmail", mock.Anything, mock.Anything)
	})
}

func TestCustomerHandler_ListCustomers(t *testing.T) {
	t.Parallel()

	t.Run("defaults applied when no parameters given", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		uc.EXPECT().
			ListCustomers(mock.Anything, usecase.ListCustomersInput{
				SortBy: repository.SortByID,
				Skip:   0,
				Limit:  10,
			}).
			Return([]*entity.Customer{{ID: 1}}, nil)

		req := newJSONRequest(http.MethodGet, "/api/customers", "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.ListCustomers(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("filters, sorting and pagination are forwarded", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		uc.EXPECT().
			ListCustomers(mock.Anything, usecase.ListCustomersInput{
				FreeText:   "ada",
				Company:    "Initech",
				SortBy:     repository.SortByEmail,
				Descending: true,
				Skip:       20,
				Limit:      25,
			}).
			Return(nil, nil)

		target := "/api/customers?q=ada&company=Initech&sort_by=email&order=desc&skip=20&limit=25"
		req := newJSONRequest(http.MethodGet, target, "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.ListCustomers(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("oversized limit is clamped to the cap", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		uc.EXPECT().
			ListCustomers(mock.Anything, usecase.ListCustomersInput{
				SortBy: repository.SortByID,
				Limit:  100,
			}).
			Return(nil, nil)

		req := newJSONRequest(http.MethodGet, "/api/customers?limit=5000", "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.ListCustomers(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown sort field is a 400", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		req := newJSONRequest(http.MethodGet, "/api/customers?sort_by=password", "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.ListCustomers(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_SORT_FIELD", resp.Error.Code)
		uc.AssertNotCalled(t, "ListCustomers", mock.Anything, mock.Anything)
	})

	t.Run("invalid sort order is a 400", func(t *testing.T) {
		t.Parallel()

		h, _, e := createTestCustomerHandler(t)

		req := newJSONRequest(http.MethodGet, "/api/customers?order=sideways", "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.ListCustomers(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative skip is a 400", func(t *testing.T) {
		t.Parallel()

		h, _, e := createTestCustomerHandler(t)

		req := newJSONRequest(http.MethodGet, "/api/customers?skip=-1", "")
		rec := httptest.NewRecorder()

		require.NoError(t, h.ListCustomers(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_PAGINATION", resp.Error.Code)
	})
}

func TestCustomerHandler_CreateCustomer(t *testing.T) {
	t.Parallel()

	t.Run("creates and returns 201", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		uc.EXPECT().
			CreateCustomer(mock.Anything, usecase.CreateCustomerInput{
				FirstName:   "Ada",
				Email:       "ada@example.com",
				CountryCode: "GB",
			}).
			Return(&entity.Customer{ID: 42, FirstName: "Ada", Email: "ada@example.com", Version: 1}, nil)

		body := `{"first_name":"Ada","email":"ada@example.com","country_code":"GB"}`
		req := newJSONRequest(http.MethodPost, "/api/customers", body)
		rec := httptest.NewRecorder()

		require.NoError(t, h.CreateCustomer(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusCreated, rec.Code)

		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(42), data["id"])
		assert.Equal(t, float64(1), data["version"])
	})

	t.Run("invalid email fails validation", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		body := `{"first_name":"Ada","email":"not-an-email"}`
		req := newJSONRequest(http.MethodPost, "/api/customers", body)
		rec := httptest.NewRecorder()

		err := h.CreateCustomer(e.NewContext(req, rec))

		require.Error(t, err)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		uc.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	})
}

func TestCustomerHandler_UpdateCustomer(t *testing.T) {
	t.Parallel()

	t.Run("forwards the If-Match token as expected version", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		var gotInput usecase.UpdateCustomerInput
		uc.EXPECT().
			UpdateCustomer(mock.Anything, int64(9), mock.AnythingOfType("usecase.UpdateCustomerInput")).
			Run(func(_ context.Context, _ int64, input usecase.UpdateCustomerInput) {
				gotInput = input
			}).
			Return(&entity.Customer{ID: 9, Email: "ada@example.com", Version: 3}, nil)

		req := newJSONRequest(http.MethodPut, "/api/customers/9", `{"company":"Initech"}`)
		req.Header.Set("If-Match", `"2"`)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("9")

		require.NoError(t, h.UpdateCustomer(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, gotInput.ExpectedVersion)
		assert.Equal(t, int64(2), *gotInput.ExpectedVersion)
		require.NotNil(t, gotInput.Company)
		assert.Equal(t, "Initech", *gotInput.Company)
		assert.Nil(t, gotInput.Email)
	})

	t.Run("expected_version query parameter also works", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		var gotInput usecase.UpdateCustomerInput
		uc.EXPECT().
			UpdateCustomer(mock.Anything, int64(9), mock.AnythingOfType("usecase.UpdateCustomerInput")).
			Run(func(_ context.Context, _ int64, input usecase.UpdateCustomerInput) {
				gotInput = input
			}).
			Return(&entity.Customer{ID: 9, Email: "ada@example.com", Version: 5}, nil)

		req := newJSONRequest(http.MethodPut, "/api/customers/9?expected_version=4", `{}`)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("9")

		require.NoError(t, h.UpdateCustomer(c))
		require.NotNil(t, gotInput.ExpectedVersion)
		assert.Equal(t, int64(4), *gotInput.ExpectedVersion)
	})

	t.Run("non-integer version token is a request-shape 400", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		req := newJSONRequest(http.MethodPut, "/api/customers/9", `{"company":"Initech"}`)
		req.Header.Set("If-Match", "latest")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("9")

		require.NoError(t, h.UpdateCustomer(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_VERSION", resp.Error.Code)
		uc.AssertNotCalled(t, "UpdateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no token means unguarded update", func(t *testing.T) {
		t.Parallel()

		h, uc, e := createTestCustomerHandler(t)

		var gotInput usecase.UpdateCustomerInput
		uc.EXPECT().
			UpdateCustomer(mock.Anything, int64(9), mock.AnythingOfType("usecase.UpdateCustomerInput")).
			Run(func(_ context.Context, _ int64, input usecase.UpdateCustomerInput) {
				gotInput = input
			}).
			Return(&entity.Customer{ID: 9, Email: "ada@example.com", Version: 6}, nil)

		req := newJSONRequest(http.MethodPut, "/api/customers/9", `{}`)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("9")

		require.NoError(t, h.UpdateCustomer(c))
		assert.Nil(t, gotInput.ExpectedVersion)
	})
}

func TestCustomerHandler_DeleteCustomer(t *testing.T) {
	t.Parallel()

	h, uc, e := createTestCustomerHandler(t)

	uc.EXPECT().
		DeleteCustomer(mock.Anything, int64(11)).
		Return(&entity.Customer{ID: 11, Email: "gone@example.com"}, nil)

	req := newJSONRequest(http.MethodDelete, "/api/customers/11", "")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("11")

	require.NoError(t, h.DeleteCustomer(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "gone@example.com", data["email"])
}
