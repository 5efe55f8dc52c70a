// Package session holds the working state of one governance console
// session: the chain and Powers contract being viewed and the action being
// drafted against one of its mandates.
//
// State changes only through Reduce, a pure function of the current state
// and an Event. Store wraps it with locking, change notification and the
// encoding steps that turn form input into calldata.
package session
