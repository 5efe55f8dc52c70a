// Package orchestrator turns deployment requests into on-chain governance
// instances.
//
// The Validator resolves a request into a Plan and rejects it when the
// template is unavailable, the input is invalid or the chain's static data
// lacks a mandate or bytecode the template needs. Nothing is sent before a
// plan exists.
//
// The Sequencer sends the transactions of a plan in a fixed order: the
// Powers contract, each dependency, the constitution, closing it, and
// finally ownership transfers of ownable dependencies. It halts on the first
// failed step and reports every status transition.
//
// The Manager accepts requests and queues them on the event bus; the
// Executor runs queued deployments and persists their progress.
package orchestrator
