// Package integration_tests holds end-to-end tests that load descriptors
// from disk and run them through the full application.
package integration_tests
