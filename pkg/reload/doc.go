// Package reload swaps the moderation policy at runtime.
//
// A Reloader re-reads the configuration file, rebuilds the cultural profiles
// and decision thresholds, and hands the result to the orchestrator. A file
// that fails to load or validate is logged and the running policy stays in
// place. Reloads are triggered by a FileWatcher (fsnotify, debounced), by a
// cron Scheduler, or directly (the serve command wires SIGHUP to Reload).
//
// Only the policy is hot-reloaded. Engine, translation and server settings
// take effect on restart.
package reload
