// Package poller provides the HTTP client and scheduling loop for keepwarm.
//
// This package is internal to keepwarm and handles the periodic execution
// of ping attempts against a single target.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout and size limits
//   - [Scheduler]: Runs a [Task] on a fixed interval in a background goroutine
//     with an explicit Stopped/Running lifecycle
//
// Users of the keepwarm library should not need to interact with this
// package directly. The loop is driven through [keepwarm.Controller].
package poller
