package signal

import (
	"context"

	"github.com/google/uuid"
)

// Link is a forwarding connection created by Chain or ChainWith.
type Link struct {
	key    string
	unlink func(key string) bool
}

// Key returns the dispatch key of the forwarding receiver.
func (l *Link) Key() string {
	return l.key
}

// Unlink disconnects the forwarding receiver. It reports whether the
// receiver was still connected.
func (l *Link) Unlink() bool {
	return l.unlink(l.key)
}

func composeKey(op string) string {
	return "compose:" + op + ":" + uuid.NewString()
}

// Chain forwards every payload sent on s to target. A failure in target
// surfaces as a failure of the forwarding receiver on s.
func (s *Signal[T]) Chain(target *Signal[T]) (*Link, error) {
	return ChainWith(s, target, func(v T) T { return v })
}

// ChainWith forwards f(payload) from source to target.
func ChainWith[T, U any](source *Signal[T], target *Signal[U], f func(T) U) (*Link, error) {
	if source == nil || target == nil {
		return nil, &RegistrationError{Err: ErrNilSignal}
	}
	if f == nil {
		return nil, &RegistrationError{Signal: source.name, Err: ErrNilReceiver}
	}

	key := composeKey("chain")
	err := source.ConnectWithFullOptions(func(ctx context.Context, v T) error {
		_, err := target.Send(ctx, f(v))
		return err
	}, NoSender, key, PriorityNormal, nil)
	if err != nil {
		return nil, err
	}
	return &Link{key: key, unlink: source.Disconnect}, nil
}

// Merge returns a new signal named "merged_signal" that receives every
// payload sent on any of sources.
func Merge[T any](sources ...*Signal[T]) (*Signal[T], error) {
	cfg := defaultSignalConfig()
	for _, src := range sources {
		if src == nil {
			return nil, &RegistrationError{Signal: "merged_signal", Err: ErrNilSignal}
		}
	}
	if len(sources) > 0 {
		cfg = derivedConfig(sources[0].cfg)
	}

	merged := newSignal[T]("merged_signal", cfg)
	for _, src := range sources {
		if _, err := src.Chain(merged); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// Filter returns a new signal named "<name>_filtered" that receives the
// payloads of s accepted by p.
func (s *Signal[T]) Filter(p Predicate[T]) (*Signal[T], error) {
	if s == nil {
		return nil, &RegistrationError{Err: ErrNilSignal}
	}
	if p == nil {
		return nil, &RegistrationError{Signal: s.name, Err: ErrNilReceiver}
	}

	out := newSignal[T](s.name+"_filtered", derivedConfig(s.cfg))
	err := s.ConnectWithFullOptions(func(ctx context.Context, v T) error {
		if !p(v) {
			return nil
		}
		_, err := out.Send(ctx, v)
		return err
	}, NoSender, composeKey("filter"), PriorityNormal, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Map returns a new signal named "<name>_mapped" that receives f(payload)
// for every payload sent on source.
func Map[T, U any](source *Signal[T], f func(T) U) (*Signal[U], error) {
	if source == nil {
		return nil, &RegistrationError{Err: ErrNilSignal}
	}
	if f == nil {
		return nil, &RegistrationError{Signal: source.name, Err: ErrNilReceiver}
	}

	out := newSignal[U](source.name+"_mapped", derivedConfig(source.cfg))
	err := source.ConnectWithFullOptions(func(ctx context.Context, v T) error {
		_, err := out.Send(ctx, f(v))
		return err
	}, NoSender, composeKey("map"), PriorityNormal, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// derivedConfig keeps the logger and pool of a parent signal.
func derivedConfig(parent signalConfig) signalConfig {
	cfg := defaultSignalConfig()
	cfg.logger = parent.logger
	cfg.pool = parent.pool
	return cfg
}
