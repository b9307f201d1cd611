// Package deadletter captures failed receiver executions and retries them.
//
// A Queue wraps one signal. Failed outcomes of robust or asynchronous sends
// become entries; ProcessDue (or Run) redelivers due entries to the exact
// receiver that failed, following a retry Policy. An entry that still
// fails after MaxRetries redeliveries is removed and reported as a
// DeadLetterError.
//
// The queue is bounded. What happens when it is full is an explicit
// choice: DropOldest evicts the oldest entry, RejectNew refuses the new one.
package deadletter
