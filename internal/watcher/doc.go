// Package watcher notifies registered callbacks about changes to files and
// directories.
//
// # Registration
//
// A callback is registered for one or more existing paths:
//
//	id, err := w.Register("bot_config", func(ctx context.Context, path string, change watcher.ChangeType) error {
//	    return manager.Reload(config.KindBot)
//	}, "/srv/maibot/configs/bot_config.toml")
//
// A file path fires only for that file; a directory path fires for entries
// directly inside it. Register returns an id for Unregister.
//
// # Directory Tasks
//
// Each watched directory gets one fsnotify watcher and one goroutine, shared
// by every registration that needs it and reference counted. When the last
// registration for a directory goes away its goroutine is cancelled and
// awaited for at most the stop timeout.
//
// Callbacks for one directory run sequentially on its goroutine, in
// registration order. A burst of identical (path, change) events is
// delivered once, after the dedupe window has passed without a repeat.
package watcher
