// Package domain holds the types shared by the deployment sequencer, the
// mandate graph and the adapters: mandates and their conditions, actions,
// deployment dependencies and status, chain profiles and cached layouts.
package domain
