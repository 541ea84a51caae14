// Package observability provides structured logging and Prometheus metrics
// for the banking API.
//
// This package implements:
//   - zap logger construction from level and format settings
//   - Request-scoped loggers carrying the request ID
//   - Counters for authentication outcomes, rate limit decisions and logins
//   - HTTP request latency histograms
package observability
