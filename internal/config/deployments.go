package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DeploymentsConfig holds configuration for the deployments command.
type DeploymentsConfig struct {
	OutDir   string
	Chain    string
	PGDSN    string
	LogLevel string
}

// LoadDeployments merges config file, environment variables, and flags into DeploymentsConfig.
func LoadDeployments(cfgFile string, flags *pflag.FlagSet) (DeploymentsConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("REFUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out-dir", "./deployments")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return DeploymentsConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return DeploymentsConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return DeploymentsConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := DeploymentsConfig{
		OutDir:   v.GetString("out-dir"),
		Chain:    v.GetString("chain"),
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
