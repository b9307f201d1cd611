// Package throttle limits how often a signal can be sent.
//
// A Throttle wraps the send methods of one signal with a rate limiter.
// Four strategies are available:
//
//   - FixedWindow: at most Limit sends per aligned Window
//   - SlidingWindow: at most Limit sends in any Window-long span
//   - TokenBucket: Limit tokens per Window refilled continuously, up to Burst
//   - LeakyBucket: sends drain at Limit per Window with Burst tolerance
//
// When the limit is reached the Throttle either rejects the send with a
// ThrottleError (Reject) or waits until capacity frees up (Block). The mode
// has no default; it must be chosen explicitly.
package throttle
