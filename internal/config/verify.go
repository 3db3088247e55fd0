package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// VerifyConfig holds configuration for the verify command.
type VerifyConfig struct {
	Deployment      string
	Contract        string
	Chain           string
	Name            string
	ConstructorArgs string
	ContractsDir    string
	CompilerVersion string
	ChainsFile      string
	LogLevel        string
}

// LoadVerify merges config file, environment variables, and flags into VerifyConfig.
func LoadVerify(cfgFile string, flags *pflag.FlagSet) (VerifyConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("REFUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chains-file", "./chains.yaml")
	v.SetDefault("contracts-dir", "./contracts")
	v.SetDefault("compiler-version", "v0.4.3+commit.bff19ea2")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return VerifyConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return VerifyConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return VerifyConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := VerifyConfig{
		Deployment:      v.GetString("deployment"),
		Contract:        v.GetString("contract"),
		Chain:           v.GetString("chain"),
		Name:            v.GetString("name"),
		ConstructorArgs: v.GetString("constructor-args"),
		ContractsDir:    v.GetString("contracts-dir"),
		CompilerVersion: v.GetString("compiler-version"),
		ChainsFile:      v.GetString("chains-file"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
