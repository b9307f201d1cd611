// Package config loads service configuration and watches it for changes.
//
// A configuration file is TOML, YAML or JSON, chosen by extension:
//
//	[log]
//	level = "debug"
//
//	[signals.order_placed]
//	logging = true
//	metrics = true
//
//	[signals.order_placed.throttle]
//	strategy = "token_bucket"
//	limit = 100
//	window = "1s"
//	mode = "reject"
//
// Watcher reloads the file when it changes and reports each changed key on
// the setting_changed signal of a registry.
package config
