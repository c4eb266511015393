// Package delivery defines the transport-facing servers of the service.
package delivery

import "context"

// Delivery is a long-running transport endpoint (HTTP server, message
// consumer). Serve blocks until the endpoint stops or fails; shutdown is
// driven through the application lifecycle.
type Delivery interface {
	Serve(ctx context.Context) error
}
