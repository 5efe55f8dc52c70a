// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Organization templates and deployment submission
//   - Deployment status queries
//   - Mandate graph layout, Mermaid export and saved layouts
//   - Call data encoding and action ids
//   - Health checks and Prometheus metrics
package http
