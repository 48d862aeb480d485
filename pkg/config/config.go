// Package config charge la configuration: valeurs par défaut, fichier YAML optionnel,
// variables d'environnement COHORTS_* puis flags de la ligne de commande.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"weekly-cohorts/pkg/calendar"
	"weekly-cohorts/pkg/database"
	"weekly-cohorts/pkg/report"
)

// Sentinel validation errors.
var (
	ErrMissingInput    = errors.New("customers and orders files (or a dsn) are required")
	ErrInvalidMaxWeeks = errors.New("max weeks must be >= 0")
	ErrInvalidFormat   = errors.New("invalid output format")
)

// Default configuration values.
const (
	DefaultTimezone = "+0000"
	DefaultOutput   = "-"
	DefaultFormat   = report.FormatCSV
	envPrefix       = "COHORTS"
)

// Config regroupe tous les paramètres du rapport.
type Config struct {
	CustomersFile  string `mapstructure:"customers_file"`
	OrdersFile     string `mapstructure:"orders_file"`
	Timezone       string `mapstructure:"timezone"`
	MaxWeeks       int    `mapstructure:"max_weeks"`
	Output         string `mapstructure:"output"`
	Format         string `mapstructure:"format"`
	DSN            string `mapstructure:"dsn"`
	CustomersTable string `mapstructure:"customers_table"`
	OrdersTable    string `mapstructure:"orders_table"`
	Progress       bool   `mapstructure:"progress"`
	Verbose        bool   `mapstructure:"verbose"`
}

// UseDatabase indique si les enregistrements sont lus depuis MySQL plutôt que depuis des CSV.
func (c *Config) UseDatabase() bool {
	return c.DSN != ""
}

// flagKeys associe chaque flag à sa clé de configuration.
var flagKeys = map[string]string{
	"customers-file":  "customers_file",
	"orders-file":     "orders_file",
	"timezone":        "timezone",
	"max-weeks":       "max_weeks",
	"output":          "output",
	"format":          "format",
	"dsn":             "dsn",
	"customers-table": "customers_table",
	"orders-table":    "orders_table",
	"progress":        "progress",
	"verbose":         "verbose",
}

// Load charge la configuration depuis configPath (optionnel), l'environnement et flags (optionnel).
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
		if err := viperCfg.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := viperCfg.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("customers_file", "")
	viperCfg.SetDefault("orders_file", "")
	viperCfg.SetDefault("timezone", DefaultTimezone)
	viperCfg.SetDefault("max_weeks", 0)
	viperCfg.SetDefault("output", DefaultOutput)
	viperCfg.SetDefault("format", DefaultFormat)
	viperCfg.SetDefault("dsn", "")
	viperCfg.SetDefault("customers_table", database.DefaultCustomersTable)
	viperCfg.SetDefault("orders_table", database.DefaultOrdersTable)
	viperCfg.SetDefault("progress", false)
	viperCfg.SetDefault("verbose", false)
}

func validate(cfg *Config) error {
	if !cfg.UseDatabase() && (cfg.CustomersFile == "" || cfg.OrdersFile == "") {
		return ErrMissingInput
	}
	if cfg.MaxWeeks < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxWeeks, cfg.MaxWeeks)
	}
	switch cfg.Format {
	case report.FormatCSV, report.FormatTable:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Format)
	}
	if _, err := calendar.ParseOffsetMinutes(cfg.Timezone); err != nil {
		return err
	}
	return nil
}
