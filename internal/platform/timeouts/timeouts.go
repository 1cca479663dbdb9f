// Package timeouts holds the timeout constants shared by the progression
// process so durations stay consistent between the server and its tooling.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// NotifyDelivery is the default bound on one post-commit notification
// batch when no delivery timeout is configured.
const NotifyDelivery = 2 * time.Second
