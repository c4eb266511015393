// Package lifecycle holds shared lifecycle constants used by the delivery
// and infrastructure layers.
package lifecycle

import "time"

// DefaultTimeout bounds graceful startup and shutdown operations such as
// database pings and server drains.
const DefaultTimeout = 10 * time.Second
