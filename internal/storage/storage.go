package storage

import (
	"context"

	"poolrefuel/internal/model"
)

// Ledger is a durable sink for deployment records.
type Ledger interface {
	RecordDeployment(ctx context.Context, log *model.DeploymentLog) error
}
