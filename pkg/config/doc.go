// Package config provides configuration loading, validation, and hot
// reloading for the sentinel daemon.
//
// Configuration is a single YAML file. Loading applies defaults, then
// SENTINEL_* environment overrides, then validates the result; a config
// that fails validation is never handed to the rest of the program.
//
// A Watcher built on fsnotify re-loads the file on change (debounced), so
// threshold tuning does not require a restart. Reloads that fail validation
// are logged and discarded; the previous config stays in effect.
package config
