package signal

import (
	"fmt"
	"strings"
)

// Built-in signal names.
const (
	PreSave             = "pre_save"
	PostSave            = "post_save"
	PreDelete           = "pre_delete"
	PostDelete          = "post_delete"
	PreInit             = "pre_init"
	PostInit            = "post_init"
	M2MChanged          = "m2m_changed"
	ClassPrepared       = "class_prepared"
	PreMigrate          = "pre_migrate"
	PostMigrate         = "post_migrate"
	RequestStarted      = "request_started"
	RequestFinished     = "request_finished"
	GotRequestException = "got_request_exception"
	SettingChanged      = "setting_changed"
	DBBeforeInsert      = "db_before_insert"
	DBAfterInsert       = "db_after_insert"
	DBBeforeUpdate      = "db_before_update"
	DBAfterUpdate       = "db_after_update"
	DBBeforeDelete      = "db_before_delete"
	DBAfterDelete       = "db_after_delete"
)

var builtinNames = []string{
	PreSave, PostSave, PreDelete, PostDelete, PreInit, PostInit,
	M2MChanged, ClassPrepared, PreMigrate, PostMigrate,
	RequestStarted, RequestFinished, GotRequestException, SettingChanged,
	DBBeforeInsert, DBAfterInsert, DBBeforeUpdate, DBAfterUpdate,
	DBBeforeDelete, DBAfterDelete,
}

// BuiltinNames returns the reserved signal names.
func BuiltinNames() []string {
	out := make([]string, len(builtinNames))
	copy(out, builtinNames)
	return out
}

// IsBuiltin reports whether name is reserved.
func IsBuiltin(name string) bool {
	for _, n := range builtinNames {
		if n == name {
			return true
		}
	}
	return false
}

// ValidateName checks a custom signal name. Names must be non-empty
// snake_case, start with a lowercase letter or underscore, contain no
// double underscores, not end with an underscore, and not be reserved.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if IsBuiltin(name) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '_' {
			return fmt.Errorf("%w: %q must use lowercase letters, digits and underscores", ErrInvalidName, name)
		}
	}
	if first := name[0]; !(first >= 'a' && first <= 'z') && first != '_' {
		return fmt.Errorf("%w: %q must start with a lowercase letter or underscore", ErrInvalidName, name)
	}
	if strings.Contains(name, "__") {
		return fmt.Errorf("%w: %q contains consecutive underscores", ErrInvalidName, name)
	}
	if strings.HasSuffix(name, "_") {
		return fmt.Errorf("%w: %q ends with an underscore", ErrInvalidName, name)
	}
	return nil
}
