// Package signal provides typed, in-process signals.
//
// A Signal[T] carries payloads of exactly one type T to a set of connected
// receivers. Components that care about an event connect a receiver; the
// component that produces the event sends a payload. Neither side needs to
// know about the other.
//
// # Receivers
//
// Every connected receiver occupies a slot with:
//
//   - a sender filter: the receiver only runs when the send names that
//     exact sender type (see SenderOf)
//   - a dispatch key: connecting again with the same key replaces the
//     earlier receiver instead of adding a second one
//   - a priority: higher priorities run first, ties run in connect order
//   - a predicate: the receiver only runs when the predicate accepts the
//     payload
//
// # Sending
//
// Send and SendWithSender are fail-fast: they stop at the first receiver
// that returns an error or panics. SendRobust runs every eligible receiver
// and reports each outcome. SendAsync hands a robust send to a worker pool
// and returns immediately.
//
// A send works on a snapshot of the receivers taken when it starts, so a
// receiver that connects or disconnects during a send only affects later
// sends.
//
// # Middleware
//
// Middleware observes and gates dispatch. BeforeSend can abort the whole
// send, BeforeReceiver can skip one receiver, and the After hooks see the
// outcomes. All hooks run in the order the middleware was added.
//
// # Composition
//
//	active, _ := users.Filter(func(u User) bool { return u.Active })
//	emails, _ := signal.Map(active, func(u User) string { return u.Email })
//
// Chain, ChainWith, Merge, Filter and Map build new signals out of
// existing ones by connecting forwarding receivers.
//
// # Registry
//
// A Registry hands out one shared Signal per (name, payload type) pair.
// GetSignal uses a process-wide default registry.
package signal
