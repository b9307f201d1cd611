package events

// SettingChangedEvent is sent when a configuration value changes.
// OldValue is nil when the setting did not exist before.
type SettingChangedEvent struct {
	SettingName string  `json:"setting_name"`
	OldValue    *string `json:"old_value,omitempty"`
	NewValue    string  `json:"new_value"`
}

// NewSettingChangedEvent creates a SettingChangedEvent.
func NewSettingChangedEvent(name string, oldValue *string, newValue string) SettingChangedEvent {
	return SettingChangedEvent{SettingName: name, OldValue: oldValue, NewValue: newValue}
}

// Added reports whether the setting is new.
func (e SettingChangedEvent) Added() bool {
	return e.OldValue == nil
}
