package events

// RequestStartedEvent is sent when request handling begins.
type RequestStartedEvent struct {
	Environ map[string]string `json:"environ,omitempty"`
}

// NewRequestStartedEvent creates an empty RequestStartedEvent.
func NewRequestStartedEvent() RequestStartedEvent {
	return RequestStartedEvent{Environ: map[string]string{}}
}

// WithEnviron returns a copy with the environment set.
func (e RequestStartedEvent) WithEnviron(env map[string]string) RequestStartedEvent {
	e.Environ = env
	return e
}

// RequestFinishedEvent is sent when request handling ends.
type RequestFinishedEvent struct {
	Environ map[string]string `json:"environ,omitempty"`
}

// NewRequestFinishedEvent creates an empty RequestFinishedEvent.
func NewRequestFinishedEvent() RequestFinishedEvent {
	return RequestFinishedEvent{Environ: map[string]string{}}
}

// WithEnviron returns a copy with the environment set.
func (e RequestFinishedEvent) WithEnviron(env map[string]string) RequestFinishedEvent {
	e.Environ = env
	return e
}

// GotRequestExceptionEvent is sent when request handling fails.
type GotRequestExceptionEvent struct {
	ErrorMessage string            `json:"error_message"`
	RequestInfo  map[string]string `json:"request_info,omitempty"`
}

// NewGotRequestExceptionEvent creates a GotRequestExceptionEvent.
func NewGotRequestExceptionEvent(msg string) GotRequestExceptionEvent {
	return GotRequestExceptionEvent{ErrorMessage: msg}
}

// WithRequestInfo returns a copy with request details set.
func (e GotRequestExceptionEvent) WithRequestInfo(info map[string]string) GotRequestExceptionEvent {
	e.RequestInfo = info
	return e
}
