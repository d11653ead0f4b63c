// Package config defines MaiBot's configuration files and keeps them loaded.
//
// # Files
//
// Two versioned TOML files live under <root>/configs:
//
//   - bot_config.toml: behaviour settings (Config), version ConfigVersion
//   - model_config.toml: API providers and model assignments (ModelConfig),
//     version ModelConfigVersion
//
// The project root is MAIBOT_ROOT, or the working directory when unset.
//
// # Startup
//
//	m := config.NewManager(paths, logger)
//	migrated, err := m.Initialize()
//	if migrated {
//	    os.Exit(config.ExitConfigMigrated)
//	}
//
// Missing files are generated from defaults. Files older than the current
// schema version are migrated in place, with the previous copy kept under
// configs/old/. Either way Initialize reports migrated so the user can review
// the result before the bot runs with it.
//
// # Environment Variable Expansion
//
// API provider keys and base URLs may reference environment variables:
//
//	[[api_providers]]
//	name = "DeepSeek"
//	api_key = "${DEEPSEEK_API_KEY}"
//
// Expansion happens after loading; the file keeps the reference.
//
// # Hot Reload
//
// Watch registers both files with a watcher.Watcher. A change on disk reloads
// the file and calls every OnReload listener. A file that fails to load
// leaves the previous configuration in place.
package config
