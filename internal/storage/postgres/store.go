package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolrefuel/internal/model"
)

// Store provides Postgres persistence for the deployments ledger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RecordDeployment upserts one row per contract of a deployment run.
func (s *Store) RecordDeployment(ctx context.Context, log *model.DeploymentLog) error {
	if log == nil || len(log.Contracts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for name, contract := range log.Contracts {
		batch.Queue(`
			INSERT INTO deployments (
				chain_id, chain, deployer, contract_name, address, tx_hash,
				contract_type, blueprint_address, deployed_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (chain_id, address)
			DO UPDATE SET
				deployer = EXCLUDED.deployer,
				contract_name = EXCLUDED.contract_name,
				tx_hash = EXCLUDED.tx_hash,
				contract_type = EXCLUDED.contract_type,
				blueprint_address = EXCLUDED.blueprint_address,
				deployed_at = EXCLUDED.deployed_at,
				updated_at = now()
		`,
			int64(log.DeploymentInfo.ChainID),
			log.DeploymentInfo.Chain,
			log.DeploymentInfo.Deployer,
			name,
			contract.Address,
			contract.TxHash,
			contract.ContractType,
			contract.BlueprintAddress,
			log.DeploymentInfo.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range log.Contracts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListDeployments returns ledger rows, oldest first. chain filters when set.
func (s *Store) ListDeployments(ctx context.Context, chain string) ([]model.DeploymentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, chain, deployer, contract_name, address, tx_hash,
		       contract_type, blueprint_address, deployed_at::text
		FROM deployments
		WHERE ($1 = '' OR chain = $1)
		ORDER BY deployed_at, contract_name
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeploymentRecord
	for rows.Next() {
		var rec model.DeploymentRecord
		var chainID int64
		if err := rows.Scan(
			&chainID,
			&rec.Chain,
			&rec.Deployer,
			&rec.ContractName,
			&rec.Address,
			&rec.TxHash,
			&rec.ContractType,
			&rec.BlueprintAddress,
			&rec.DeployedAt,
		); err != nil {
			return nil, err
		}
		rec.ChainID = uint64(chainID)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestFactory returns the most recent factory row for a chain.
func (s *Store) LatestFactory(ctx context.Context, chain string) (model.DeploymentRecord, bool, error) {
	if chain == "" {
		return model.DeploymentRecord{}, false, fmt.Errorf("chain name required")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT chain_id, chain, deployer, contract_name, address, tx_hash,
		       contract_type, blueprint_address, deployed_at::text
		FROM deployments
		WHERE chain = $1 AND contract_type = 'factory'
		ORDER BY deployed_at DESC
		LIMIT 1
	`, chain)

	var rec model.DeploymentRecord
	var chainID int64
	if err := row.Scan(
		&chainID,
		&rec.Chain,
		&rec.Deployer,
		&rec.ContractName,
		&rec.Address,
		&rec.TxHash,
		&rec.ContractType,
		&rec.BlueprintAddress,
		&rec.DeployedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DeploymentRecord{}, false, nil
		}
		return model.DeploymentRecord{}, false, err
	}
	rec.ChainID = uint64(chainID)
	return rec, true, nil
}
