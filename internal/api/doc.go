// Package api hosts the operator HTTP endpoint served while a command runs.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/throttles for live request gate occupancy.
//   - GET /v1/geocode?q=... to try the city resolver.
package api
