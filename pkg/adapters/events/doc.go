// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: in-process delivery, one ordered queue per subscription
package events
