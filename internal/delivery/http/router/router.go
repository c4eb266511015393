// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"customer/config"
	"customer/internal/delivery/http/middleware"
	"customer/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	Config          *config.Config
	CustomerHandler *handler.CustomerHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	cfg             *config.Config
	customerHandler *handler.CustomerHandler
	authMiddleware  *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		cfg:             params.Config,
		customerHandler: params.CustomerHandler,
		authMiddleware:  params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Customer routes. Every route requires a valid token; reads and writes
	// are gated by separate capability scopes.
	customerGroup := e.Group("/api/customers")
	customerGroup.Use(r.authMiddleware.Authenticate)

	readScope := r.authMiddleware.RequireScope(r.cfg.Auth.ReadScope)
	writeScope := r.authMiddleware.RequireScope(r.cfg.Auth.WriteScope)
	{
		customerGroup.GET("", r.customerHandler.ListCustomers, readScope)
		customerGroup.GET("/by-email", r.customerHandler.GetCustomerByEmail, readScope)
		customerGroup.GET("/:id", r.customerHandler.GetCustomer, readScope)
		customerGroup.POST("", r.customerHandler.CreateCustomer, writeScope)
		customerGroup.PUT("/:id", r.customerHandler.UpdateCustomer, writeScope)
		customerGroup.DELETE("/:id", r.customerHandler.DeleteCustomer, writeScope)
	}
}
