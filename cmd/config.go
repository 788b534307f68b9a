package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/config"
	"github.com/kebunops/opsreport/internal/metric"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/refdata"
	"github.com/kebunops/opsreport/internal/render"
)

const defaultRefDataFile = "refdata.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage opsreport configuration",
	Long:  `Read and write opsreport configuration stored in config.json.`,
}

// ─── config init ──────────────────────────────────────────────────────────────

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config.json and refdata.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		tmpl := config.Template()
		tmpl.RefDataPath = defaultRefDataFile
		if err := config.WriteFile(path, tmpl); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Created %s\n", path)

		if _, err := os.Stat(defaultRefDataFile); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(defaultRefDataFile, []byte(refdata.Template), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", defaultRefDataFile, err)
			}
			fmt.Fprintf(out, "✓ Created %s\n", defaultRefDataFile)
		}
		fmt.Fprintln(out, "  Set your token in config.json or export "+config.EnvToken+" to get started.")
		return nil
	},
}

// ─── config get ───────────────────────────────────────────────────────────────

var configGetShowSecrets bool

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the resolved configuration, or one key of it",
	Example: `  opsreport config get
  opsreport config get db_path
  opsreport config get --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.Token)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		value := func(key string) string {
			if key == "token" && configGetShowSecrets {
				return cfg.Token
			}
			v, _ := cfg.Get(key)
			if v == "" {
				return "(not set)"
			}
			return v
		}

		if len(args) == 1 {
			key := strings.ToLower(args[0])
			if _, ok := cfg.Get(key); !ok {
				return fmt.Errorf("unknown config key %q\n\nValid keys: %s", key, strings.Join(config.Keys, ", "))
			}
			fmt.Fprintln(out, value(key))
			return nil
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}

		switch resolveFormat("") {
		case render.FormatJSON:
			m := make(map[string]string, len(config.Keys)+1)
			for _, k := range config.Keys {
				m[k] = value(k)
			}
			m["config_file"] = src
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		case render.FormatTable:
			rows := make([][]string, 0, len(config.Keys)+1)
			for _, k := range config.Keys {
				rows = append(rows, []string{k, value(k)})
			}
			rows = append(rows, []string{"config_file", src})
			printKVTable(out, rows)
			return nil
		default:
			tbl := render.Table{Title: "config", Header: []string{"KEY", "VALUE"}}
			for _, k := range config.Keys {
				tbl.Rows = append(tbl.Rows, []any{k, value(k)})
			}
			tbl.Rows = append(tbl.Rows, []any{"config_file", src})
			result := newResult(model.KindTable, "config get", tbl, len(tbl.Rows), time.Now())
			return render.Render(out, result, resolveFormat(""))
		}
	},
}

// ─── config set ───────────────────────────────────────────────────────────────

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Example: `  opsreport config set db_path ~/.opsreport/data.db
  opsreport config set zero_base_policy growth`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		path := config.DefaultConfigFile

		f, err := readConfigFile(path)
		if err != nil {
			return err
		}
		if err := setFileKey(&f, key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

// readConfigFile reads path, or returns the template when it does not exist.
func readConfigFile(path string) (config.File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Template(), nil
	}
	if err != nil {
		return config.File{}, err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return config.File{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// setFileKey validates val and stores it under key.
func setFileKey(f *config.File, key, val string) error {
	switch key {
	case "token":
		f.Token = val
	case "default_format", "format":
		if !render.ValidFormat(val) {
			return fmt.Errorf("unknown format %q (use one of %v)", val, render.Formats)
		}
		f.DefaultFormat = val
	case "timeout":
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		f.Timeout = val
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil || r <= 0 {
			return fmt.Errorf("rate must be a positive number")
		}
		f.Rate = r
	case "retries":
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return fmt.Errorf("retries must be a positive integer")
		}
		f.Retries = n
	case "page_size":
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return fmt.Errorf("page_size must be a positive integer")
		}
		f.PageSize = n
	case "zero_base_policy":
		if _, err := metric.ParsePolicy(val); err != nil {
			return err
		}
		f.ZeroBase = val
	case "base_url":
		f.BaseURL = val
	case "db_path":
		f.DBPath = val
	case "refdata_path":
		f.RefDataPath = val
	default:
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(config.Keys, ", "))
	}
	return nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configGetCmd, configSetCmd)

	configGetCmd.Flags().BoolVar(&configGetShowSecrets, "show-secrets", false, "show the token in plain text")
}
