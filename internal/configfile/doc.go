// Package configfile reads, migrates and writes versioned TOML configuration
// files.
//
// # File Layout
//
// Every file carries its schema version in a reserved table:
//
//	[inner]
//	version = "7.18.4"
//
//	[bot]
//	# Platform the bot runs on
//	platform = "qq"
//
// Each top-level field of the schema struct is one table, or one array of
// tables for lists of records.
//
// # Migration
//
// Sync loads a file into a schema struct. When the version declared by the
// caller is newer than the stored one, the file is rewritten from the loaded
// struct so new fields appear with their defaults and unknown keys disappear.
// The previous file is first moved to old/<stem>_<YYYYMMDD_HHMMSS>.toml next
// to it, and a change report is logged.
package configfile
