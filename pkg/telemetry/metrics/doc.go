// Package metrics exposes Report Keeper's Prometheus metrics.
//
// A Collector owns a dedicated registry holding Go runtime and process
// metrics, HTTP request metrics and report lifecycle counters. The
// reclamation job registers its metrics on the same registry, and Handler
// serves everything through promhttp.
package metrics
