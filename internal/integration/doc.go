// Package integration provides cross-package integration tests for dailyshuffle.
// These tests run the whole pipeline against real files: an SQLite store, a
// filesystem archive, a roster document and an HTTP webhook.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
