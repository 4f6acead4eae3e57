// Package config layers the server configuration: built-in defaults,
// then an optional YAML file, then environment variables and
// command-line flags (handled by the CLI layer, highest priority).
package config

import (
	"fmt"
	"os"

	"github.com/paularlott/cli"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	DataDir       string `yaml:"data_dir"`
	ListenAddr    string `yaml:"listen_addr"`
	APIToken      string `yaml:"api_token"`
	MCPToken      string `yaml:"mcp_token"`
	AuditSchedule string `yaml:"audit_schedule"`
	AuditWorkers  int    `yaml:"audit_workers"`

	ConfigFile string `yaml:"-"` // path of the loaded YAML file, if any
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		DataDir:       "./data",
		ListenAddr:    ":8080",
		AuditSchedule: "0 * * * *",
		AuditWorkers:  4,
	}
}

// GetFlags returns the server command flags. Every flag has an IPAMD_*
// environment variable fallback.
func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML configuration file",
			EnvVars: []string{"IPAMD_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Directory for the SQLite database",
			EnvVars: []string{"IPAMD_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "listen-addr",
			Usage:   "HTTP listen address",
			EnvVars: []string{"IPAMD_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "Bearer token (or bcrypt hash of one) required on /api/ routes",
			EnvVars: []string{"IPAMD_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "mcp-token",
			Usage:   "Bearer token required on the /mcp endpoint",
			EnvVars: []string{"IPAMD_MCP_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "audit-schedule",
			Usage:   "Cron schedule for the utilization audit sweep",
			EnvVars: []string{"IPAMD_AUDIT_SCHEDULE"},
		},
		&cli.IntFlag{
			Name:    "audit-workers",
			Usage:   "Number of audit worker goroutines",
			EnvVars: []string{"IPAMD_AUDIT_WORKERS"},
		},
	}
}

// Load resolves the configuration for a command invocation. Flag and
// environment values win over the YAML file, which wins over defaults.
func Load(cmd *cli.Command) (*Config, error) {
	cfg := Defaults()

	if path := cmd.GetString("config"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	if v := cmd.GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := cmd.GetString("listen-addr"); v != "" {
		cfg.ListenAddr = v
	}
	if v := cmd.GetString("api-token"); v != "" {
		cfg.APIToken = v
	}
	if v := cmd.GetString("mcp-token"); v != "" {
		cfg.MCPToken = v
	}
	if v := cmd.GetString("audit-schedule"); v != "" {
		cfg.AuditSchedule = v
	}
	if v := cmd.GetInt("audit-workers"); v > 0 {
		cfg.AuditWorkers = v
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// IsAPIAuthEnabled reports whether API routes require a bearer token.
func (c *Config) IsAPIAuthEnabled() bool {
	return c.APIToken != ""
}

// IsMCPAuthEnabled reports whether the MCP endpoint requires a token.
func (c *Config) IsMCPAuthEnabled() bool {
	return c.MCPToken != ""
}

// String names the configuration source.
func (c *Config) String() string {
	if c.ConfigFile != "" {
		return fmt.Sprintf("yaml file (%s)", c.ConfigFile)
	}
	return "defaults, environment and flags"
}
