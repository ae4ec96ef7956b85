// Package server provides the Report Keeper HTTP API.
//
// The server exposes report authoring and lifecycle operations over JSON,
// with API key authentication, per-user rate limiting and optional TLS.
//
// # Routes
//
//   - POST   /v1/reports                 - Create a report in stage1
//   - GET    /v1/reports                 - List reports visible to the caller
//   - GET    /v1/reports/{id}            - Fetch a report
//   - DELETE /v1/reports/{id}            - Soft delete a report
//   - POST   /v1/reports/{id}/recover    - Recover a soft-deleted report
//   - POST   /v1/reports/{id}/advance    - Move a report to its next stage
//   - POST   /v1/admin/reclamation       - Run reclamation now
//   - GET    /v1/admin/reclamation       - Summary of the last reclamation run
//   - GET    /health, /ready             - Liveness and readiness probes
//   - GET    /version                    - Build information
//   - GET    /metrics                    - Prometheus metrics, when enabled
//
// Everything under /v1/ requires an API key. Errors are returned as
//
//	{"error": {"type": "not_found", "message": "report not found", "request_id": "..."}}
//
// # Access Rules
//
// Inspectors and operators see only their own reports. Branch managers see
// every report of their branch. Superadmins see everything. Reclamation may
// be triggered by operators and superadmins.
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost first):
//  1. Recovery: Recovers from panics and returns 500 error
//  2. RequestID: Assigns or propagates X-Request-ID
//  3. Logging: Logs request/response details
//  4. CORS: Adds Cross-Origin Resource Sharing headers
//  5. BodyLimit: Caps request body size
//
// API routes additionally pass through authentication and, when enabled,
// rate limiting.
//
// # Graceful Shutdown
//
// Start blocks until its context is cancelled, then stops accepting new
// connections and waits up to server.shutdown_timeout for active requests.
package server
