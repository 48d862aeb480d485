package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-cohorts/pkg/calendar"
	"weekly-cohorts/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cohorts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
customers_file: customers.csv
orders_file: orders.csv
timezone: "-0500"
max_weeks: 8
format: table
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "customers.csv", cfg.CustomersFile)
	assert.Equal(t, "orders.csv", cfg.OrdersFile)
	assert.Equal(t, "-0500", cfg.Timezone)
	assert.Equal(t, 8, cfg.MaxWeeks)
	assert.Equal(t, "table", cfg.Format)
	// défauts
	assert.Equal(t, config.DefaultOutput, cfg.Output)
	assert.Equal(t, "customers", cfg.CustomersTable)
	assert.Equal(t, "orders", cfg.OrdersTable)
	assert.False(t, cfg.UseDatabase())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("COHORTS_DSN", "mysql://u:p@localhost:3306/shop")
	t.Setenv("COHORTS_TIMEZONE", "+0200")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.True(t, cfg.UseDatabase())
	assert.Equal(t, "+0200", cfg.Timezone)
	assert.Equal(t, config.DefaultFormat, cfg.Format)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
customers_file: customers.csv
orders_file: orders.csv
max_weeks: 8
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-weeks", 0, "")
	flags.String("output", "-", "")
	require.NoError(t, flags.Parse([]string{"--max-weeks", "4", "--output", "report.csv"}))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxWeeks)
	assert.Equal(t, "report.csv", cfg.Output)
	assert.Equal(t, "customers.csv", cfg.CustomersFile)
}

func TestLoadValidation(t *testing.T) {
	_, err := config.Load(writeConfig(t, "customers_file: c.csv\n"), nil)
	assert.ErrorIs(t, err, config.ErrMissingInput)

	_, err = config.Load(writeConfig(t, "dsn: x\nmax_weeks: -1\n"), nil)
	assert.ErrorIs(t, err, config.ErrInvalidMaxWeeks)

	_, err = config.Load(writeConfig(t, "dsn: x\nformat: pdf\n"), nil)
	assert.ErrorIs(t, err, config.ErrInvalidFormat)

	_, err = config.Load(writeConfig(t, "dsn: x\ntimezone: Americas/New_York\n"), nil)
	assert.ErrorIs(t, err, calendar.ErrInvalidOffset)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}
