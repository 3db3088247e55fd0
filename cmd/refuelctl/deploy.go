package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"poolrefuel/internal/chain"
	"poolrefuel/internal/config"
	"poolrefuel/internal/engine"
	"poolrefuel/internal/model"
	"poolrefuel/internal/refuel"
	"poolrefuel/internal/storage"
	"poolrefuel/internal/storage/postgres"
)

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ThresholdBps > 10000 {
		return fmt.Errorf("threshold-bps must be at most 10000")
	}

	reg, err := config.LoadChains(cfg.ChainsFile)
	if err != nil {
		return err
	}
	spec, err := reg.Chain(cfg.Chain)
	if err != nil {
		return err
	}

	key, err := readPrivateKey()
	if err != nil {
		return err
	}
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	deployer := crypto.PubkeyToAddress(priv.PublicKey)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("deploying",
		zap.String("chain", cfg.Chain),
		zap.Uint64("chain_id", spec.ChainID),
		zap.String("deployer", deployer.Hex()),
		zap.Bool("offline", cfg.Offline),
	)

	world := engine.NewWorld(logger)

	if !cfg.Offline {
		rpcURL := cfg.RPC
		if rpcURL == "" {
			rpcURL, err = reg.RPCURL(cfg.Chain)
			if err != nil {
				return err
			}
		}
		client, err := chain.NewClient(ctx, rpcURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer client.Close()

		chainID, err := client.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("fetch chain id: %w", err)
		}
		if chainID.Uint64() != spec.ChainID {
			return fmt.Errorf("chain id mismatch: rpc reports %s, %s expects %d", chainID, cfg.Chain, spec.ChainID)
		}

		balance, err := client.Balance(ctx, deployer)
		if err != nil {
			return fmt.Errorf("fetch balance: %w", err)
		}
		if balance.Sign() == 0 {
			return fmt.Errorf("deployer %s has zero %s balance on %s", deployer.Hex(), spec.NativeCurrency, cfg.Chain)
		}

		nonce, err := client.PendingNonce(ctx, deployer)
		if err != nil {
			return fmt.Errorf("fetch nonce: %w", err)
		}
		world.SetNonce(deployer, nonce)

		head, err := client.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("fetch head block: %w", err)
		}

		logger.Info("preflight ok",
			zap.String("balance_wei", balance.String()),
			zap.String("currency", spec.NativeCurrency),
			zap.Uint64("nonce", nonce),
			zap.Uint64("head_block", head),
		)
	}

	bp := &refuel.Blueprint{DefaultThresholdBps: cfg.ThresholdBps}
	bpAddr, err := world.PublishBlueprint(deployer, bp)
	if err != nil {
		return fmt.Errorf("publish blueprint: %w", err)
	}
	factoryAddr, err := world.PublishFactory(deployer, deployer, bpAddr)
	if err != nil {
		return fmt.Errorf("publish factory: %w", err)
	}

	log := &model.DeploymentLog{
		DeploymentInfo: model.DeploymentInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Deployer:  deployer.Hex(),
			Chain:     cfg.Chain,
			ChainID:   spec.ChainID,
		},
		Contracts: map[string]model.ContractRecord{
			"refuel_blueprint": {
				Address:      bpAddr.Hex(),
				TxHash:       txHash(deployer, bpAddr),
				ContractType: "blueprint",
			},
			"refuel_factory": {
				Address:          factoryAddr.Hex(),
				TxHash:           txHash(deployer, factoryAddr),
				ContractType:     "factory",
				BlueprintAddress: bpAddr.Hex(),
				ConstructorArgs:  []string{bpAddr.Hex()},
			},
		},
		Verification: map[string]model.VerificationInfo{},
	}

	writer := storage.NewDeployLogWriter(cfg.OutDir)
	path, err := writer.Save(log)
	if err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if prev, ok, err := store.LatestFactory(ctx, cfg.Chain); err != nil {
			return fmt.Errorf("check prior deployments: %w", err)
		} else if ok {
			logger.Info("previous factory on record",
				zap.String("address", prev.Address),
				zap.String("deployed_at", prev.DeployedAt))
		}

		var ledger storage.Ledger = store
		if err := ledger.RecordDeployment(ctx, log); err != nil {
			return fmt.Errorf("record deployment: %w", err)
		}
	}

	logger.Info("deployment complete",
		zap.String("blueprint", bpAddr.Hex()),
		zap.String("factory", factoryAddr.Hex()),
		zap.String("log", path),
	)
	if spec.ExplorerURL != "" {
		logger.Info("explorer links",
			zap.String("blueprint", spec.ExplorerURL+"/address/"+bpAddr.Hex()),
			zap.String("factory", spec.ExplorerURL+"/address/"+factoryAddr.Hex()),
		)
	}
	if !cfg.SkipVerification {
		logger.Info("next step",
			zap.String("command", fmt.Sprintf("refuelctl verify --deployment %s", path)))
	}

	return nil
}

// txHash derives a deterministic id for a simulated creation.
func txHash(deployer, created common.Address) string {
	return crypto.Keccak256Hash(deployer.Bytes(), created.Bytes()).Hex()
}

func readPrivateKey() (string, error) {
	if key := os.Getenv("REFUEL_PRIVATE_KEY"); key != "" {
		return strings.TrimSpace(key), nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("REFUEL_PRIVATE_KEY is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Deployer private key (input hidden): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read private key: %w", err)
	}

	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("empty private key")
	}
	return key, nil
}
