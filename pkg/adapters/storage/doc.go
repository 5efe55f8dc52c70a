// Package storage provides deployment and layout storage implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - memory: In-memory for tests and single-process runs
//
// Both implement ports.DeploymentStore and ports.LayoutStore and report a
// missing key with ports.ErrNotFound.
package storage
