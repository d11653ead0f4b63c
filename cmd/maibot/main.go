// ABOUTME: Entry point for the MaiBot core process
// ABOUTME: Loads and migrates config files, maintains the database and watches for config edits

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/Pomelo32141/MaiBot/internal/config"
	"github.com/Pomelo32141/MaiBot/internal/logging"
	"github.com/Pomelo32141/MaiBot/internal/store"
	"github.com/Pomelo32141/MaiBot/internal/watcher"
)

// Version is set at build time.
var version = "dev"

const banner = `
  __  __       _ ____        _
 |  \/  | __ _(_) __ )  ___ | |_
 | |\/| |/ _' | |  _ \ / _ \| __|
 | |  | | (_| | | |_) | (_) | |_
 |_|  |_|\__,_|_|____/ \___/ \__|
`

// errMigrated signals that config files were generated or upgraded and the
// user should review them before starting again.
var errMigrated = errors.New("configuration files were created or updated, review them and restart")

func usage() {
	fmt.Println("Usage: maibot <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                              Load configuration, prepare the database and watch for config edits")
	fmt.Println("  init                               Create missing config files and the data directory")
	fmt.Println("  check                              Validate config files, exit 3 if they were migrated")
	fmt.Println("  dump [--format yaml|json|toml]     Print the effective bot config without secrets")
	fmt.Println("       [--model]                     Print the model config instead")
	fmt.Println("  db init|check|fix-images           Database maintenance")
	fmt.Println()
	fmt.Printf("The project root is the working directory unless %s is set.\n", config.RootEnv)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Stdout)
	case "init":
		err = runInit(os.Stdout)
	case "check":
		err = runCheck(os.Stdout)
	case "dump":
		err = runDump(os.Stdout, os.Args[2:])
	case "db":
		err = runDB(ctx, os.Stdout, os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if errors.Is(err, errMigrated) {
		color.New(color.FgYellow).Fprintf(os.Stderr, "%v\n", err)
		os.Exit(config.ExitConfigMigrated)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// quietLogger discards everything below warnings so command output stays readable.
func quietLogger(w io.Writer) *slog.Logger {
	return logging.New(w, logging.Options{Level: "warn"})
}

// loadConfig resolves the project paths and loads both config files.
func loadConfig(logger *slog.Logger) (*config.Manager, bool, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, false, err
	}
	m := config.NewManager(paths, logger)
	changed, err := m.Initialize()
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return m, changed, nil
}

func openStore(paths config.Paths, cfg config.DatabaseConfig, logger *slog.Logger) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(paths.Resolve(cfg.Path),
		store.WithDriver(cfg.Driver),
		store.WithLogger(logging.Module(logger, "database")),
	)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

func runServe(ctx context.Context, out io.Writer) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s  core: %s\n\n", version, config.MMCVersion)

	level := new(slog.LevelVar)
	bootLogger := logging.New(out, logging.Options{Leveler: level})

	m, changed, err := loadConfig(bootLogger)
	if err != nil {
		return err
	}
	if changed {
		return errMigrated
	}

	cfg := m.Global()
	level.Set(logging.ParseLevel(cfg.Log.Level))
	logger := logging.New(out, logging.Options{Format: cfg.Log.Format, Leveler: level})
	slog.SetDefault(logger)

	paths := m.Paths()
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", paths.ConfigDir)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s (%s)\n", paths.Resolve(cfg.Database.Path), cfg.Database.Driver)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Models:    %d across %d providers\n", len(m.Model().Models), len(m.Model().APIProviders))
	fmt.Fprintln(out)

	st, err := openStore(paths, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Initialize(ctx, cfg.Database.SyncConstraints); err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	if _, err := st.FixImageIDs(ctx); err != nil {
		return err
	}

	w := watcher.New(watcher.WithLogger(logging.Module(logger, "watcher")))
	defer w.Close()

	m.OnReload(func(kind config.Kind) {
		if kind == config.KindBot {
			level.Set(logging.ParseLevel(m.Global().Log.Level))
		}
	})
	if err := m.Watch(w); err != nil {
		return err
	}

	logging.Module(logger, "main").Info("MaiBot core ready", "root", paths.Root)
	<-ctx.Done()

	logging.Module(logger, "main").Info("shutting down")
	return m.StopWatching(w)
}

func runInit(out io.Writer) error {
	m, changed, err := loadConfig(quietLogger(out))
	if err != nil {
		return err
	}
	paths := m.Paths()
	if err := os.MkdirAll(paths.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Bot config:    %s\n", paths.BotConfig)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Model config:  %s\n", paths.ModelConfig)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Data:          %s\n", paths.DataDir)
	if changed {
		fmt.Fprintln(out)
		yellow.Fprintln(out, "Config files were generated or updated. Fill in your API keys, then run:")
		fmt.Fprintln(out, "  maibot serve")
	}
	return nil
}

func runCheck(out io.Writer) error {
	m, changed, err := loadConfig(quietLogger(out))
	if err != nil {
		return err
	}
	if changed {
		return errMigrated
	}

	green := color.New(color.FgGreen)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "bot_config.toml    version %s\n", config.ConfigVersion)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "model_config.toml  version %s, %d models, %d providers\n",
		config.ModelConfigVersion, len(m.Model().Models), len(m.Model().APIProviders))
	return nil
}

func runDB(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: maibot db init|check|fix-images")
	}
	action := args[0]
	switch action {
	case "init", "check", "fix-images":
	default:
		return fmt.Errorf("unknown db command: %s", action)
	}

	logger := quietLogger(out)
	m, changed, err := loadConfig(logger)
	if err != nil {
		return err
	}
	if changed {
		return errMigrated
	}
	cfg := m.Global().Database

	st, err := openStore(m.Paths(), cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	switch action {
	case "init":
		report, err := st.Initialize(ctx, cfg.SyncConstraints)
		if err != nil {
			return err
		}
		printInitReport(out, report)
	case "check":
		issues, err := st.CheckConstraints(ctx)
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			green.Fprintln(out, "All column constraints match the models.")
			return nil
		}
		for _, name := range sortedKeys(issues) {
			yellow.Fprintf(out, "%s\n", name)
			for _, issue := range issues[name] {
				fmt.Fprintf(out, "  %-28s database %-8s model %-8s -> %s\n", issue.Column,
					nullName(issue.DBNullable), nullName(issue.ModelNullable), issue.Action())
			}
		}
		fmt.Fprintln(out, "\nSet sync_constraints = true under [database] and run `maibot db init` to repair.")
	case "fix-images":
		n, err := st.FixImageIDs(ctx)
		if err != nil {
			return err
		}
		green.Fprint(out, "✓ ")
		fmt.Fprintf(out, "Assigned ids to %d images\n", n)
	}
	return nil
}

func printInitReport(out io.Writer, r *store.InitReport) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Created %d tables\n", len(r.CreatedTables))
	for _, name := range sortedKeys(r.AddedColumns) {
		green.Fprint(out, "✓ ")
		fmt.Fprintf(out, "%s: added %s\n", name, strings.Join(r.AddedColumns[name], ", "))
	}
	for _, name := range sortedKeys(r.ExtraColumns) {
		yellow.Fprint(out, "! ")
		fmt.Fprintf(out, "%s: unknown columns %s (remove manually)\n", name, strings.Join(r.ExtraColumns[name], ", "))
	}
	for _, name := range r.Rebuilt {
		green.Fprint(out, "✓ ")
		fmt.Fprintf(out, "%s: rebuilt to match NULL constraints\n", name)
	}
}

func nullName(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}
