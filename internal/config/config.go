// Package config handles loading and resolving opsreport configuration.
// Resolution order (later layers win):
//  1. built-in defaults
//  2. config.json in the current working directory
//  3. .env in the current working directory
//  4. process environment (OPS_API_TOKEN, OPS_BASE_URL, ...)
//  5. CLI flag --token
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kebunops/opsreport/internal/metric"
)

const (
	DefaultConfigFile = "config.json"
	DefaultEnvFile    = ".env"
	DefaultFormat     = "table"
	DefaultTimeout    = 30 * time.Second
	DefaultRate       = 5.0
	DefaultRetries    = 1
	DefaultPageSize   = 50
	DefaultBaseURL    = "https://api.kebunops.id/"

	EnvToken    = "OPS_API_TOKEN"
	EnvBaseURL  = "OPS_BASE_URL"
	EnvDBPath   = "OPSREPORT_DB_PATH"
	EnvRefData  = "OPSREPORT_REFDATA"
	EnvZeroBase = "OPSREPORT_ZERO_BASE"
)

// File is the on-disk representation of config.json.
type File struct {
	Token         string  `json:"token"`
	DefaultFormat string  `json:"default_format"`
	Timeout       string  `json:"timeout"`
	Rate          float64 `json:"rate"`
	Retries       int     `json:"retries"`
	BaseURL       string  `json:"base_url"`
	DBPath        string  `json:"db_path"`
	RefDataPath   string  `json:"refdata_path"`
	PageSize      int     `json:"page_size"`
	ZeroBase      string  `json:"zero_base_policy"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	Token       string
	Format      string
	Timeout     time.Duration
	Rate        float64
	Retries     int
	BaseURL     string
	DBPath      string
	RefDataPath string
	PageSize    int
	ZeroBase    metric.ZeroBasePolicy
	ConfigPath  string // config.json that was loaded (empty if none found)
	EnvPath     string // .env that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Store   bool
	Offline bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagToken is the value of --token (empty string if not set).
func Load(flagToken string) (*Config, error) {
	cfg := &Config{
		Format:   DefaultFormat,
		Timeout:  DefaultTimeout,
		Rate:     DefaultRate,
		Retries:  DefaultRetries,
		BaseURL:  DefaultBaseURL,
		PageSize: DefaultPageSize,
		ZeroBase: metric.ZeroBaseFlat,
	}

	// Layer 1: config.json
	f, path, err := loadFile()
	switch {
	case err == nil:
		if err := applyFile(cfg, f, path); err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	// Layer 2: .env file, then layer 3: the real environment on top of it.
	vars := map[string]string{}
	if envPath, err := filepath.Abs(DefaultEnvFile); err == nil {
		if dotenv, err := godotenv.Read(envPath); err == nil {
			cfg.EnvPath = envPath
			vars = dotenv
		}
	}
	for _, k := range []string{EnvToken, EnvBaseURL, EnvDBPath, EnvRefData, EnvZeroBase} {
		if v := os.Getenv(k); v != "" {
			vars[k] = v
		}
	}
	if err := applyEnv(cfg, vars); err != nil {
		return nil, err
	}

	// Layer 4: CLI flag
	if flagToken != "" {
		cfg.Token = flagToken
	}

	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, ".opsreport", "opsreport.db")
		}
	}
	if cfg.RefDataPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.RefDataPath = filepath.Join(home, ".opsreport", "refdata.yaml")
		}
	}

	return cfg, nil
}

func applyEnv(cfg *Config, vars map[string]string) error {
	if v := vars[EnvToken]; v != "" {
		cfg.Token = v
	}
	if v := vars[EnvBaseURL]; v != "" {
		cfg.BaseURL = v
	}
	if v := vars[EnvDBPath]; v != "" {
		cfg.DBPath = v
	}
	if v := vars[EnvRefData]; v != "" {
		cfg.RefDataPath = v
	}
	if v := vars[EnvZeroBase]; v != "" {
		p, err := metric.ParsePolicy(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvZeroBase, err)
		}
		cfg.ZeroBase = p
	}
	return nil
}

// Validate returns an error if required fields are missing.
// Offline runs read only the local store and need no token.
func (c *Config) Validate() error {
	if c.Token == "" && !c.Offline {
		return errors.New(
			"API token not found.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        opsreport --token YOUR_TOKEN ...\n" +
				"  2. Environment:     export " + EnvToken + "=YOUR_TOKEN\n" +
				"  3. .env file:       " + EnvToken + "=YOUR_TOKEN\n" +
				"  4. config.json:     {\"token\": \"YOUR_TOKEN\"}",
		)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if c.Store && c.Offline {
		return errors.New("--store and --offline are mutually exclusive")
	}
	return nil
}

// RedactedToken returns the token with most characters replaced by asterisks.
// Safe for logging and display.
func (c *Config) RedactedToken() string {
	if len(c.Token) <= 4 {
		return "****"
	}
	return c.Token[:2] + "****" + c.Token[len(c.Token)-2:]
}

// loadFile attempts to read config.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s: %w", path, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) error {
	cfg.ConfigPath = path
	if f.Token != "" {
		cfg.Token = f.Token
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("config.json timeout %q: %w", f.Timeout, err)
		}
		cfg.Timeout = d
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.Retries > 0 {
		cfg.Retries = f.Retries
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.RefDataPath != "" {
		cfg.RefDataPath = f.RefDataPath
	}
	if f.PageSize > 0 {
		cfg.PageSize = f.PageSize
	}
	if f.ZeroBase != "" {
		p, err := metric.ParsePolicy(f.ZeroBase)
		if err != nil {
			return fmt.Errorf("config.json: %w", err)
		}
		cfg.ZeroBase = p
	}
	return nil
}

// Get returns a resolved setting by its config.json key, for `config get`.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "token":
		return c.RedactedToken(), true
	case "default_format":
		return c.Format, true
	case "timeout":
		return c.Timeout.String(), true
	case "rate":
		return strconv.FormatFloat(c.Rate, 'f', -1, 64), true
	case "retries":
		return strconv.Itoa(c.Retries), true
	case "base_url":
		return c.BaseURL, true
	case "db_path":
		return c.DBPath, true
	case "refdata_path":
		return c.RefDataPath, true
	case "page_size":
		return strconv.Itoa(c.PageSize), true
	case "zero_base_policy":
		return string(c.ZeroBase), true
	}
	return "", false
}

// Keys lists the keys accepted by Get, in display order.
var Keys = []string{
	"token", "default_format", "timeout", "rate", "retries",
	"base_url", "db_path", "refdata_path", "page_size", "zero_base_policy",
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `opsreport config init`.
func Template() File {
	return File{
		DefaultFormat: DefaultFormat,
		Timeout:       DefaultTimeout.String(),
		Rate:          DefaultRate,
		Retries:       DefaultRetries,
		BaseURL:       DefaultBaseURL,
		PageSize:      DefaultPageSize,
		ZeroBase:      string(metric.ZeroBaseFlat),
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
