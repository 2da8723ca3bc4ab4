// Package retry provides exponential backoff retry logic for transient failures.
//
// The [WithExponentialBackoff] function retries an operation with configurable
// max attempts, initial delay, and maximum delay. It wraps SSH dials so that a
// host that is briefly unreachable can be retried before the distributor gives
// up on it. Errors wrapped with [Fatal] end the loop immediately.
package retry
