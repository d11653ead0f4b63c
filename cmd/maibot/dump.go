// ABOUTME: The dump command: prints the effective configuration
// ABOUTME: Renders YAML, JSON or versioned TOML with secret fields left out

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Pomelo32141/MaiBot/internal/config"
	"github.com/Pomelo32141/MaiBot/internal/configfile"
)

type dumpArgs struct {
	format string
	model  bool
}

// parseDumpArgs supports both "--format value" and "--format=value".
func parseDumpArgs(args []string) (dumpArgs, error) {
	d := dumpArgs{format: "yaml"}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--format" || arg == "-f":
			if i+1 >= len(args) {
				return d, fmt.Errorf("--format requires a value")
			}
			d.format = args[i+1]
			i++
		case strings.HasPrefix(arg, "--format="):
			d.format = strings.TrimPrefix(arg, "--format=")
		case arg == "--model":
			d.model = true
		case strings.HasPrefix(arg, "-"):
			return d, fmt.Errorf("unknown flag: %s", arg)
		default:
			return d, fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	switch d.format {
	case "yaml", "json", "toml":
	default:
		return d, fmt.Errorf("unsupported format %q (want yaml, json or toml)", d.format)
	}
	return d, nil
}

func runDump(out io.Writer, args []string) error {
	d, err := parseDumpArgs(args)
	if err != nil {
		return err
	}
	m, changed, err := loadConfig(quietLogger(io.Discard))
	if err != nil {
		return err
	}
	if changed {
		return errMigrated
	}

	var (
		v       any = m.Global()
		version     = config.ConfigVersion
	)
	if d.model {
		v, version = m.Model(), config.ModelConfigVersion
	}
	data, err := renderDump(v, version, d.format)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// renderDump serializes a config struct. Fields tagged secret never appear.
func renderDump(v any, version, format string) ([]byte, error) {
	if format == "toml" {
		return configfile.Encode(v, version, configfile.WithRedaction())
	}

	plain, err := configfile.Plain(v, configfile.WithRedaction())
	if err != nil {
		return nil, err
	}
	plain["inner"] = map[string]any{"version": version}

	switch format {
	case "yaml":
		return yaml.Marshal(plain)
	case "json":
		data, err := json.MarshalIndent(plain, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
