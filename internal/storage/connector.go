package storage

import (
	"context"
	"errors"
	"fmt"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/common"
)

var (
	// ErrNotFound marks a missing height/hash/id. The API layer maps it to
	// 404; everything else surfaces as a server error.
	ErrNotFound = errors.New("not found")

	// ErrHeightConflict marks an attempt to ingest a block at an already
	// indexed height with different content. The ingester treats it as fatal.
	ErrHeightConflict = errors.New("divergent block at already indexed height")
)

// QueryFilter carries pagination plus the allow-listed equality filters for
// listing endpoints. Sender is raw bytes (already hex-normalized by the API
// layer).
type QueryFilter struct {
	Limit    int
	Offset   int
	Sender   []byte
	DomainId string
}

// IStorage is the full storage contract: the ingester is its only writer, the
// query API reads it concurrently. InsertBlockData must be atomic per block.
type IStorage interface {
	// write side (ingester only)
	InsertBlockData(ctx context.Context, data *common.BlockData) error
	DeleteBlock(ctx context.Context, height int64) error

	// read side
	GetMaxHeight(ctx context.Context) (int64, bool, error)
	GetBlocks(ctx context.Context, qf QueryFilter) ([]common.Block, error)
	GetBlockByHeight(ctx context.Context, height int64) (*common.Block, []common.Transaction, error)
	GetTransactions(ctx context.Context, qf QueryFilter) ([]common.Transaction, error)
	GetTransactionByHash(ctx context.Context, hash []byte) (*common.Transaction, error)
	GetDomains(ctx context.Context) ([]common.Domain, error)
	GetRollupBatches(ctx context.Context, qf QueryFilter) ([]common.RollupBatch, error)
	GetGovernanceEvents(ctx context.Context, qf QueryFilter) ([]common.GovernanceEvent, error)
	GetPrivacyActions(ctx context.Context, qf QueryFilter) ([]common.PrivacyAction, error)
	GetAccounts(ctx context.Context, qf QueryFilter) ([]common.Account, error)

	GetChainStats(ctx context.Context) (common.ChainStats, error)
	GetDAStats(ctx context.Context) (common.DAStats, error)
	GetDomainStats(ctx context.Context) ([]common.DomainStats, error)

	Close() error
}

// NewConnector picks the configured storage driver.
func NewConnector(cfg *config.StorageConfig) (IStorage, error) {
	if cfg.Postgres != nil {
		return NewPostgresConnector(cfg.Postgres)
	}
	if cfg.Memory != nil {
		return NewMemoryConnector(cfg.Memory)
	}
	return nil, fmt.Errorf("no storage driver configured")
}
