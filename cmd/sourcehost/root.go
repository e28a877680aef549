package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goatkit/sourcehost/internal/obslog"
)

var (
	flagPluginDir   string
	flagSettingsDB  string
	flagRedisAddr   string
	flagEnableCache bool

	logger = obslog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "sourcehost",
	Short: "Load and drive WASM content-source plugins",
	Long: `sourcehost loads content-source plugin packages (zip archives
carrying a main.wasm, source.json manifest, and optional settings/filters
fragments), wires the import namespaces the plugin calls back into, and
drives its exported entry points from the command line.`,
}

func init() {
	v := viper.New()
	v.SetEnvPrefix("sourcehost")
	v.AutomaticEnv()
	v.SetDefault("plugin_dir", "./plugins")
	v.SetDefault("settings_db", "./sourcehost-settings.db")

	rootCmd.PersistentFlags().StringVar(&flagPluginDir, "plugin-dir", v.GetString("plugin_dir"), "directory to scan for .wasm plugins")
	rootCmd.PersistentFlags().StringVar(&flagSettingsDB, "settings-db", v.GetString("settings_db"), "sqlite database backing the settings collaborator")
	rootCmd.PersistentFlags().StringVar(&flagRedisAddr, "redis-addr", v.GetString("redis_addr"), "redis address for the HTTP response cache decorator (disabled if empty)")
	rootCmd.PersistentFlags().BoolVar(&flagEnableCache, "cache", v.GetBool("cache") || v.GetString("redis_addr") != "", "wrap the HTTP bridge in the redis response cache")

	_ = v.BindPFlag("plugin_dir", rootCmd.PersistentFlags().Lookup("plugin-dir"))
}

func rootLogger() *slog.Logger { return logger }
