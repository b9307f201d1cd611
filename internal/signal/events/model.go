package events

import "reflect"

// PreInitEvent is sent before a model value is constructed.
type PreInitEvent[T any] struct {
	ModelType string         `json:"model_type"`
	Args      map[string]any `json:"args,omitempty"`
}

// NewPreInitEvent creates a PreInitEvent for model type T.
func NewPreInitEvent[T any]() PreInitEvent[T] {
	return PreInitEvent[T]{ModelType: reflect.TypeFor[T]().String()}
}

// WithArgs returns a copy with the constructor arguments set.
func (e PreInitEvent[T]) WithArgs(args map[string]any) PreInitEvent[T] {
	e.Args = args
	return e
}

// PostInitEvent is sent after a model value is constructed.
type PostInitEvent[T any] struct {
	Instance T `json:"instance"`
}

// NewPostInitEvent creates a PostInitEvent.
func NewPostInitEvent[T any](instance T) PostInitEvent[T] {
	return PostInitEvent[T]{Instance: instance}
}

// M2MAction is the kind of many-to-many change.
type M2MAction int

const (
	PreAdd M2MAction = iota
	PostAdd
	PreRemove
	PostRemove
	PreClear
	PostClear
)

// String returns the action name, e.g. "pre_add".
func (a M2MAction) String() string {
	switch a {
	case PreAdd:
		return "pre_add"
	case PostAdd:
		return "post_add"
	case PreRemove:
		return "pre_remove"
	case PostRemove:
		return "post_remove"
	case PreClear:
		return "pre_clear"
	case PostClear:
		return "post_clear"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a M2MAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// M2MChangeEvent is sent when a many-to-many relation of Instance changes.
type M2MChangeEvent[T, R any] struct {
	Instance  T         `json:"instance"`
	Action    M2MAction `json:"action"`
	Related   []R       `json:"related"`
	Reverse   bool      `json:"reverse"`
	ModelName string    `json:"model_name,omitempty"`
}

// NewM2MChangeEvent creates an M2MChangeEvent.
func NewM2MChangeEvent[T, R any](instance T, action M2MAction, related []R) M2MChangeEvent[T, R] {
	return M2MChangeEvent[T, R]{Instance: instance, Action: action, Related: related}
}

// WithReverse returns a copy with the reverse flag set.
func (e M2MChangeEvent[T, R]) WithReverse(reverse bool) M2MChangeEvent[T, R] {
	e.Reverse = reverse
	return e
}

// WithModelName returns a copy with the related model name set.
func (e M2MChangeEvent[T, R]) WithModelName(name string) M2MChangeEvent[T, R] {
	e.ModelName = name
	return e
}

// MigrationEvent is sent around migrations of an app.
type MigrationEvent struct {
	AppName       string   `json:"app_name"`
	MigrationName string   `json:"migration_name"`
	Plan          []string `json:"plan,omitempty"`
}

// NewMigrationEvent creates a MigrationEvent.
func NewMigrationEvent(app, migration string) MigrationEvent {
	return MigrationEvent{AppName: app, MigrationName: migration}
}

// WithPlan returns a copy with the migration plan set.
func (e MigrationEvent) WithPlan(plan []string) MigrationEvent {
	e.Plan = plan
	return e
}

// ClassPreparedEvent is sent once a model type has been registered.
type ClassPreparedEvent struct {
	ModelName string `json:"model_name"`
	AppLabel  string `json:"app_label"`
}

// NewClassPreparedEvent creates a ClassPreparedEvent.
func NewClassPreparedEvent(model, app string) ClassPreparedEvent {
	return ClassPreparedEvent{ModelName: model, AppLabel: app}
}
