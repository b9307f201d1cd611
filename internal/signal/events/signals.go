package events

import "github.com/dshills/signals/internal/signal"

func registry(r *signal.Registry) *signal.Registry {
	if r == nil {
		return signal.DefaultRegistry()
	}
	return r
}

// PreSave returns the pre_save signal for model type T.
func PreSave[T any]() *signal.Signal[T] { return PreSaveIn[T](nil) }

// PreSaveIn returns the pre_save signal for T in r.
func PreSaveIn[T any](r *signal.Registry) *signal.Signal[T] {
	return signal.Get[T](registry(r), signal.PreSave)
}

// PostSave returns the post_save signal for model type T.
func PostSave[T any]() *signal.Signal[T] { return PostSaveIn[T](nil) }

// PostSaveIn returns the post_save signal for T in r.
func PostSaveIn[T any](r *signal.Registry) *signal.Signal[T] {
	return signal.Get[T](registry(r), signal.PostSave)
}

// PreDelete returns the pre_delete signal for model type T.
func PreDelete[T any]() *signal.Signal[T] { return PreDeleteIn[T](nil) }

// PreDeleteIn returns the pre_delete signal for T in r.
func PreDeleteIn[T any](r *signal.Registry) *signal.Signal[T] {
	return signal.Get[T](registry(r), signal.PreDelete)
}

// PostDelete returns the post_delete signal for model type T.
func PostDelete[T any]() *signal.Signal[T] { return PostDeleteIn[T](nil) }

// PostDeleteIn returns the post_delete signal for T in r.
func PostDeleteIn[T any](r *signal.Registry) *signal.Signal[T] {
	return signal.Get[T](registry(r), signal.PostDelete)
}

// PreInit returns the pre_init signal for model type T.
func PreInit[T any]() *signal.Signal[PreInitEvent[T]] { return PreInitIn[T](nil) }

// PreInitIn returns the pre_init signal for T in r.
func PreInitIn[T any](r *signal.Registry) *signal.Signal[PreInitEvent[T]] {
	return signal.Get[PreInitEvent[T]](registry(r), signal.PreInit)
}

// PostInit returns the post_init signal for model type T.
func PostInit[T any]() *signal.Signal[PostInitEvent[T]] { return PostInitIn[T](nil) }

// PostInitIn returns the post_init signal for T in r.
func PostInitIn[T any](r *signal.Registry) *signal.Signal[PostInitEvent[T]] {
	return signal.Get[PostInitEvent[T]](registry(r), signal.PostInit)
}

// M2MChanged returns the m2m_changed signal for owner T and related R.
func M2MChanged[T, R any]() *signal.Signal[M2MChangeEvent[T, R]] { return M2MChangedIn[T, R](nil) }

// M2MChangedIn returns the m2m_changed signal for T and R in r.
func M2MChangedIn[T, R any](r *signal.Registry) *signal.Signal[M2MChangeEvent[T, R]] {
	return signal.Get[M2MChangeEvent[T, R]](registry(r), signal.M2MChanged)
}

// ClassPrepared returns the class_prepared signal.
func ClassPrepared() *signal.Signal[ClassPreparedEvent] { return ClassPreparedIn(nil) }

// ClassPreparedIn returns the class_prepared signal in r.
func ClassPreparedIn(r *signal.Registry) *signal.Signal[ClassPreparedEvent] {
	return signal.Get[ClassPreparedEvent](registry(r), signal.ClassPrepared)
}

// PreMigrate returns the pre_migrate signal.
func PreMigrate() *signal.Signal[MigrationEvent] { return PreMigrateIn(nil) }

// PreMigrateIn returns the pre_migrate signal in r.
func PreMigrateIn(r *signal.Registry) *signal.Signal[MigrationEvent] {
	return signal.Get[MigrationEvent](registry(r), signal.PreMigrate)
}

// PostMigrate returns the post_migrate signal.
func PostMigrate() *signal.Signal[MigrationEvent] { return PostMigrateIn(nil) }

// PostMigrateIn returns the post_migrate signal in r.
func PostMigrateIn(r *signal.Registry) *signal.Signal[MigrationEvent] {
	return signal.Get[MigrationEvent](registry(r), signal.PostMigrate)
}

// RequestStarted returns the request_started signal.
func RequestStarted() *signal.Signal[RequestStartedEvent] { return RequestStartedIn(nil) }

// RequestStartedIn returns the request_started signal in r.
func RequestStartedIn(r *signal.Registry) *signal.Signal[RequestStartedEvent] {
	return signal.Get[RequestStartedEvent](registry(r), signal.RequestStarted)
}

// RequestFinished returns the request_finished signal.
func RequestFinished() *signal.Signal[RequestFinishedEvent] { return RequestFinishedIn(nil) }

// RequestFinishedIn returns the request_finished signal in r.
func RequestFinishedIn(r *signal.Registry) *signal.Signal[RequestFinishedEvent] {
	return signal.Get[RequestFinishedEvent](registry(r), signal.RequestFinished)
}

// GotRequestException returns the got_request_exception signal.
func GotRequestException() *signal.Signal[GotRequestExceptionEvent] {
	return GotRequestExceptionIn(nil)
}

// GotRequestExceptionIn returns the got_request_exception signal in r.
func GotRequestExceptionIn(r *signal.Registry) *signal.Signal[GotRequestExceptionEvent] {
	return signal.Get[GotRequestExceptionEvent](registry(r), signal.GotRequestException)
}

// SettingChanged returns the setting_changed signal.
func SettingChanged() *signal.Signal[SettingChangedEvent] { return SettingChangedIn(nil) }

// SettingChangedIn returns the setting_changed signal in r.
func SettingChangedIn(r *signal.Registry) *signal.Signal[SettingChangedEvent] {
	return signal.Get[SettingChangedEvent](registry(r), signal.SettingChanged)
}

// DB returns the signal for a db_* name such as signal.DBAfterInsert.
func DB(name string) *signal.Signal[DBEvent] { return DBIn(nil, name) }

// DBIn returns the db_* signal called name in r.
func DBIn(r *signal.Registry, name string) *signal.Signal[DBEvent] {
	return signal.Get[DBEvent](registry(r), name)
}

// DBBeforeInsert returns the db_before_insert signal.
func DBBeforeInsert() *signal.Signal[DBEvent] { return DB(signal.DBBeforeInsert) }

// DBAfterInsert returns the db_after_insert signal.
func DBAfterInsert() *signal.Signal[DBEvent] { return DB(signal.DBAfterInsert) }

// DBBeforeUpdate returns the db_before_update signal.
func DBBeforeUpdate() *signal.Signal[DBEvent] { return DB(signal.DBBeforeUpdate) }

// DBAfterUpdate returns the db_after_update signal.
func DBAfterUpdate() *signal.Signal[DBEvent] { return DB(signal.DBAfterUpdate) }

// DBBeforeDelete returns the db_before_delete signal.
func DBBeforeDelete() *signal.Signal[DBEvent] { return DB(signal.DBBeforeDelete) }

// DBAfterDelete returns the db_after_delete signal.
func DBAfterDelete() *signal.Signal[DBEvent] { return DB(signal.DBAfterDelete) }
