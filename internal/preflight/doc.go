// Package preflight checks that topicsearch can run before it is asked to.
//
// The checker validates:
//   - Configuration validity
//   - Write permissions and free disk space for the data directory
//   - Presence of the configured corpus file
//   - An index whose manifest matches the configured embedder
//   - Embedding provider availability
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
