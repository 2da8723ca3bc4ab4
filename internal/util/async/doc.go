// Package async provides utilities for parallel task execution with
// per-task error isolation.
//
// The [Run] function executes tasks on a bounded number of goroutines and
// returns one [Result] per task, in input order. A failing or panicking task
// never affects the others. The fleet distributor runs one task per host.
package async
