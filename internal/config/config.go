package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration for the deploy command, merged from flags,
// environment variables, and an optional config file.
type Config struct {
	ChainsFile       string
	Chain            string
	RPC              string
	OutDir           string
	PGDSN            string
	Offline          bool
	SkipVerification bool
	ThresholdBps     uint64
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REFUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chains-file", "./chains.yaml")
	v.SetDefault("chain", "base")
	v.SetDefault("out-dir", "./deployments")
	v.SetDefault("offline", false)
	v.SetDefault("skip-verification", false)
	v.SetDefault("threshold-bps", uint64(9500))
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		ChainsFile:       v.GetString("chains-file"),
		Chain:            v.GetString("chain"),
		RPC:              v.GetString("rpc"),
		OutDir:           v.GetString("out-dir"),
		PGDSN:            v.GetString("pg-dsn"),
		Offline:          v.GetBool("offline"),
		SkipVerification: v.GetBool("skip-verification"),
		ThresholdBps:     v.GetUint64("threshold-bps"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}
