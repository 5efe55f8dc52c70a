// Package workers runs queued deployments.
//
// The pool consumes the deployment request queue and hands every requested
// deployment to one of a fixed number of worker goroutines, which call the
// executor. The health monitor tracks worker status and reports it as
// metrics.
package workers
