package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolrefuel/internal/config"
	"poolrefuel/internal/explorer"
	"poolrefuel/internal/model"
	"poolrefuel/internal/storage"
)

func runVerify(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadVerify(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, err := config.LoadChains(cfg.ChainsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Deployment != "":
		return verifyDeployment(ctx, cfg, reg, logger)
	case cfg.Contract != "" && cfg.Chain != "" && cfg.Name != "":
		return verifySingle(ctx, cfg, reg, logger)
	default:
		return fmt.Errorf("either --deployment or --contract, --chain and --name are required")
	}
}

func newVerifierFor(reg *config.ChainRegistry, chainName string, logger *zap.Logger) (*explorer.Verifier, error) {
	spec, err := reg.Chain(chainName)
	if err != nil {
		return nil, err
	}

	apiKey := spec.ExplorerAPIKey()
	if apiKey == "" {
		logger.Warn("explorer api key not set, verification may fail",
			zap.String("env", spec.ExplorerAPIKeyEnv))
	}

	return explorer.NewVerifier(explorer.Config{
		APIURL:      spec.ExplorerAPIURL,
		APIKey:      apiKey,
		ExplorerURL: spec.ExplorerURL,
	}, logger), nil
}

func verifyDeployment(ctx context.Context, cfg config.VerifyConfig, reg *config.ChainRegistry, logger *zap.Logger) error {
	log, err := storage.LoadDeploymentLog(cfg.Deployment)
	if err != nil {
		return err
	}

	verifier, err := newVerifierFor(reg, log.DeploymentInfo.Chain, logger)
	if err != nil {
		return err
	}

	if log.Verification == nil {
		log.Verification = make(map[string]model.VerificationInfo)
	}

	names := make([]string, 0, len(log.Contracts))
	for name := range log.Contracts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		record := log.Contracts[name]
		pkg, ok, err := buildPackage(cfg, record)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warn("skipping contract with unknown type",
				zap.String("contract", name),
				zap.String("contract_type", record.ContractType))
			continue
		}

		info, err := verifier.Verify(ctx, pkg)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			info = model.VerificationInfo{Status: "error", Message: err.Error()}
		}
		log.Verification[name] = info

		logger.Info("verification result",
			zap.String("contract", name),
			zap.String("status", info.Status),
			zap.String("message", info.Message))
	}

	if err := storage.WriteDeploymentLog(cfg.Deployment, log); err != nil {
		return err
	}
	logger.Info("updated deployment log", zap.String("log", cfg.Deployment))

	return nil
}

func verifySingle(ctx context.Context, cfg config.VerifyConfig, reg *config.ChainRegistry, logger *zap.Logger) error {
	verifier, err := newVerifierFor(reg, cfg.Chain, logger)
	if err != nil {
		return err
	}

	source, err := readContractSource(cfg.ContractsDir, cfg.Name)
	if err != nil {
		return err
	}

	info, err := verifier.Verify(ctx, explorer.SourcePackage{
		Address:         cfg.Contract,
		Name:            cfg.Name,
		Source:          source,
		CompilerVersion: cfg.CompilerVersion,
		ConstructorArgs: cfg.ConstructorArgs,
	})
	if err != nil {
		return err
	}

	logger.Info("verification result",
		zap.String("contract", cfg.Name),
		zap.String("status", info.Status),
		zap.String("message", info.Message))
	if info.ExplorerURL != "" {
		logger.Info("view on explorer", zap.String("url", info.ExplorerURL))
	}

	if info.Status != "success" {
		return fmt.Errorf("verification %s: %s", info.Status, info.Message)
	}
	return nil
}

// buildPackage maps a deployment record to an explorer submission. ok is
// false for contract types it does not recognize.
func buildPackage(cfg config.VerifyConfig, record model.ContractRecord) (explorer.SourcePackage, bool, error) {
	var contractName, args string
	switch record.ContractType {
	case "blueprint":
		contractName = "Refuel"
	case "factory":
		contractName = "RefuelFactory"
		if record.BlueprintAddress != "" {
			encoded, err := explorer.EncodeConstructorAddress(common.HexToAddress(record.BlueprintAddress))
			if err != nil {
				return explorer.SourcePackage{}, false, err
			}
			args = encoded
		}
	default:
		return explorer.SourcePackage{}, false, nil
	}

	source, err := readContractSource(cfg.ContractsDir, contractName)
	if err != nil {
		return explorer.SourcePackage{}, false, err
	}

	return explorer.SourcePackage{
		Address:         record.Address,
		Name:            contractName,
		Source:          source,
		CompilerVersion: cfg.CompilerVersion,
		ConstructorArgs: args,
	}, true, nil
}

func readContractSource(dir, name string) (string, error) {
	path := filepath.Join(dir, name+".vy")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read contract source: %w", err)
	}
	return string(data), nil
}
