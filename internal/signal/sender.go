package signal

import "reflect"

// SenderType identifies the kind of component that sent a payload.
// The zero value is NoSender.
type SenderType struct {
	t reflect.Type
}

// NoSender is used for sends that do not name a sender.
var NoSender SenderType

// SenderOf returns the sender tag for type S.
func SenderOf[S any]() SenderType {
	return SenderType{t: reflect.TypeFor[S]()}
}

// SenderFor returns the sender tag for the dynamic type of v.
// A nil v yields NoSender.
func SenderFor(v any) SenderType {
	if v == nil {
		return NoSender
	}
	return SenderType{t: reflect.TypeOf(v)}
}

// IsZero reports whether s is NoSender.
func (s SenderType) IsZero() bool {
	return s.t == nil
}

// Type returns the underlying reflect.Type, or nil for NoSender.
func (s SenderType) Type() reflect.Type {
	return s.t
}

// String returns the type name, or "none".
func (s SenderType) String() string {
	if s.t == nil {
		return "none"
	}
	return s.t.String()
}

// accepts reports whether a slot filtered on s runs for a send from actual.
// An unfiltered slot accepts every send; a filtered slot only accepts its
// exact type, never NoSender.
func (s SenderType) accepts(actual SenderType) bool {
	if s.t == nil {
		return true
	}
	return s.t == actual.t
}
