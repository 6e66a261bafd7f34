// Package middleware provides the HTTP request logging and Prometheus
// metrics wrappers shared by the operator API routes.
package middleware
