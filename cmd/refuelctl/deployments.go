package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolrefuel/internal/config"
	"poolrefuel/internal/model"
	"poolrefuel/internal/storage"
	"poolrefuel/internal/storage/postgres"
)

// runDeployments prints ledger rows as JSON lines, from Postgres when a DSN
// is configured and from the YAML logs on disk otherwise.
func runDeployments(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDeployments(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		records, err := store.ListDeployments(ctx, cfg.Chain)
		if err != nil {
			return fmt.Errorf("list deployments: %w", err)
		}
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}

		logger.Info("listed deployments",
			zap.Int("records", len(records)),
			zap.String("source", "postgres"))
		return nil
	}

	files, err := storage.ListDeploymentLogs(cfg.OutDir, cfg.Chain)
	if err != nil {
		return err
	}

	count := 0
	for _, file := range files {
		log, err := storage.LoadDeploymentLog(file)
		if err != nil {
			logger.Warn("skipping unreadable deployment log",
				zap.String("file", file), zap.Error(err))
			continue
		}

		names := make([]string, 0, len(log.Contracts))
		for name := range log.Contracts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			contract := log.Contracts[name]
			rec := model.DeploymentRecord{
				ChainID:          log.DeploymentInfo.ChainID,
				Chain:            log.DeploymentInfo.Chain,
				Deployer:         log.DeploymentInfo.Deployer,
				ContractName:     name,
				Address:          contract.Address,
				TxHash:           contract.TxHash,
				ContractType:     contract.ContractType,
				BlueprintAddress: contract.BlueprintAddress,
				DeployedAt:       log.DeploymentInfo.Timestamp,
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
			count++
		}
	}

	logger.Info("listed deployments",
		zap.Int("records", count),
		zap.Int("files", len(files)),
		zap.String("source", cfg.OutDir))
	return nil
}
