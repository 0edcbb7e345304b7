// Package integration holds container-backed tests for the storage and
// index adapters. Run with `go test -tags integration ./internal/integration`.
package integration
