package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	c := Config{Namespaces: []string{"public"}, PoolMaxConns: 1, DefaultLimit: 50, MaxLimit: 1000}
	require.Error(t, c.Validate())
}

func TestValidate_RequiresAtLeastOneNamespace(t *testing.T) {
	c := Config{DatabaseURL: "postgres://x", PoolMaxConns: 1, DefaultLimit: 50, MaxLimit: 1000}
	require.Error(t, c.Validate())
}

func TestValidate_RejectsInvertedPoolSize(t *testing.T) {
	c := Config{
		DatabaseURL: "postgres://x", Namespaces: []string{"public"},
		PoolMinConns: 5, PoolMaxConns: 1, DefaultLimit: 50, MaxLimit: 1000,
	}
	require.Error(t, c.Validate())
}

func TestValidate_RejectsDefaultLimitAboveMax(t *testing.T) {
	c := Config{
		DatabaseURL: "postgres://x", Namespaces: []string{"public"},
		PoolMaxConns: 1, DefaultLimit: 2000, MaxLimit: 1000,
	}
	require.Error(t, c.Validate())
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	c := Config{
		DatabaseURL: "postgres://x", Namespaces: []string{"public"},
		PoolMaxConns: 10, DefaultLimit: 50, MaxLimit: 1000,
	}
	require.NoError(t, c.Validate())
}

func TestBindFlagsAndLoad_Defaults(t *testing.T) {
	cmd := &cobra.Command{Use: "serve"}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg := Load()
	assert.Equal(t, []string{"public"}, cfg.Namespaces)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, 1000, cfg.MaxLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.WatcherDebounce)
	assert.Equal(t, 30*time.Second, cfg.WatcherHeartbeat)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestBindFlagsAndLoad_OverriddenByFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "serve"}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--pagination-default-limit=25", "--log-format=console"}))

	cfg := Load()
	assert.Equal(t, 25, cfg.DefaultLimit)
	assert.Equal(t, "console", cfg.LogFormat)
}
