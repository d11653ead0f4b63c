// Package dedupe provides a time-based cache that reports whether a key was
// already seen within a configurable window. The file watcher uses it to
// wait out the bursts of identical events editors produce on save.
package dedupe
