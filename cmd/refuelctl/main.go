package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "refuelctl",
		Short:        "Refuel vault deployment tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Publish the refuel blueprint and factory",
		RunE:  runDeploy,
	}

	deployCmd.Flags().String("chains-file", "./chains.yaml", "chain registry file")
	deployCmd.Flags().String("chain", "base", "chain to deploy to")
	deployCmd.Flags().String("rpc", "", "RPC URL override (defaults to the chain registry's)")
	deployCmd.Flags().String("out-dir", "./deployments", "deployment log directory")
	deployCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the deployments ledger")
	deployCmd.Flags().Bool("offline", false, "skip the RPC preflight")
	deployCmd.Flags().Bool("skip-verification", false, "skip the verification hint")
	deployCmd.Flags().Uint64("threshold-bps", 9500, "default donation threshold for stamped vaults")
	deployCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(deployCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify published contract source on the explorer",
		RunE:  runVerify,
	}

	verifyCmd.Flags().String("deployment", "", "deployment log to verify")
	verifyCmd.Flags().String("contract", "", "single contract address to verify")
	verifyCmd.Flags().String("chain", "", "chain name (required with --contract)")
	verifyCmd.Flags().String("name", "", "contract name (required with --contract)")
	verifyCmd.Flags().String("constructor-args", "", "hex-encoded constructor arguments")
	verifyCmd.Flags().String("contracts-dir", "./contracts", "contract source directory")
	verifyCmd.Flags().String("compiler-version", "v0.4.3+commit.bff19ea2", "compiler version tag")
	verifyCmd.Flags().String("chains-file", "./chains.yaml", "chain registry file")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(verifyCmd)

	deploymentsCmd := &cobra.Command{
		Use:   "deployments",
		Short: "List recorded deployments",
		RunE:  runDeployments,
	}

	deploymentsCmd.Flags().String("out-dir", "./deployments", "deployment log directory")
	deploymentsCmd.Flags().String("chain", "", "filter by chain")
	deploymentsCmd.Flags().String("pg-dsn", "", "read from the Postgres ledger instead of log files")
	deploymentsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(deploymentsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
