// Report Keeper manages the lifecycle of multi-stage inspection reports.
//
// It serves the report API and runs the reclamation job that soft-deletes
// abandoned drafts and hard-deletes reports whose recovery window has
// elapsed:
//   - Stage transitions gated on required fields
//   - User delete with a recovery window
//   - Scheduled and on-demand batched reclamation
//
// Usage:
//
//	# Start server with default configuration
//	reportkeeper run
//
//	# Start with custom configuration file
//	reportkeeper run --config /path/to/config.yaml
//
//	# Reclaim now against the configured store
//	reportkeeper reclaim --api-key $OPERATOR_KEY
//
//	# List reports through a running server
//	reportkeeper report list --server http://127.0.0.1:8080 --api-key $KEY
//
//	# Show version information
//	reportkeeper version
package main

func main() {
	Execute()
}
