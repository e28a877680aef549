// Package config loads sweeper thresholds, call timeouts, memory limits,
// and devtool defaults through viper, with environment-variable and flag
// overrides layered the way the surrounding CLI loads its own settings.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the set of tunables the plugin host reads at startup.
type Config struct {
	DescriptorAgeSweep time.Duration
	RequestAgeSweep    time.Duration
	DescriptorCap      int
	RequestCap         int
	SweepInterval      time.Duration
	CallTimeout        time.Duration
	MemoryLimitPages   int
	PluginDir          string
	SignatureRequired  bool
}

// Load reads configuration from environment variables prefixed
// SOURCEHOST_ (e.g. SOURCEHOST_PLUGIN_DIR), falling back to the spec's
// documented defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("sourcehost")
	v.AutomaticEnv()

	v.SetDefault("descriptor_age_sweep", "5m")
	v.SetDefault("request_age_sweep", "10m")
	v.SetDefault("descriptor_cap", 10000)
	v.SetDefault("request_cap", 1000)
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("call_timeout", "30s")
	v.SetDefault("memory_limit_pages", 256) // 256 * 64KiB = 16MiB
	v.SetDefault("plugin_dir", "./plugins")
	v.SetDefault("signature_required", false)

	return Config{
		DescriptorAgeSweep: v.GetDuration("descriptor_age_sweep"),
		RequestAgeSweep:    v.GetDuration("request_age_sweep"),
		DescriptorCap:      v.GetInt("descriptor_cap"),
		RequestCap:         v.GetInt("request_cap"),
		SweepInterval:      v.GetDuration("sweep_interval"),
		CallTimeout:        v.GetDuration("call_timeout"),
		MemoryLimitPages:   v.GetInt("memory_limit_pages"),
		PluginDir:          v.GetString("plugin_dir"),
		SignatureRequired:  v.GetBool("signature_required"),
	}
}
