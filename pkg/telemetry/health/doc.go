// Package health provides liveness and readiness probes for Report Keeper.
//
// # Endpoints
//
//   - liveness (default /health): the process is running
//   - readiness (default /ready): every registered component check passes
//   - /version: build information
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("store", health.StoreCheck(store))
//	checker.RegisterCheck("reclamation_scheduler", health.SchedulerCheck(scheduler))
//
//	mux.Handle("GET /health", checker.LivenessHandler())
//	mux.Handle("GET /ready", checker.ReadinessHandler())
//
// Checks run concurrently, each bounded by the checker timeout.
package health
