// Package events defines the payloads of the built-in signals and typed
// accessors for them.
//
// Model lifecycle signals (pre_save, post_save, pre_delete, post_delete)
// carry the model value itself, so each model type gets its own signal:
//
//	events.PostSave[*User]().Connect(func(ctx context.Context, u *User) error {
//		return index.Update(ctx, u)
//	})
//
// The remaining signals carry one of the payload structs in this package.
// Every accessor has an In variant that resolves the signal in a given
// registry instead of the process-wide default.
package events
