package ingester

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/common"
	"github.com/kovanet/kovascan/internal/metrics"
	"github.com/kovanet/kovascan/internal/rpc"
	"github.com/kovanet/kovascan/internal/storage"
)

const (
	DEFAULT_POLL_INTERVAL_MS = 2000
	DEFAULT_RETRY_BACKOFF_MS = 500
	DEFAULT_MAX_RETRIES      = 5
)

// ErrIntegrityViolation marks a broken chain invariant: a height gap, a
// parent-hash mismatch, or divergent content at an already ingested height.
// The loop halts on it; recovery is operator-driven (delete the offending
// height and replay).
var ErrIntegrityViolation = errors.New("chain integrity violation")

// Ingester is the single writer. It reads the resume point from storage each
// cycle, so restarts and crashes need no local state.
type Ingester struct {
	rpc          rpc.IRPCClient
	storage      storage.IStorage
	fromHeight   int64
	pollInterval time.Duration
	retryBackoff time.Duration
	maxRetries   int
}

func NewIngester(rpcClient rpc.IRPCClient, s storage.IStorage) *Ingester {
	pollInterval := config.Cfg.Ingester.PollIntervalMs
	if pollInterval == 0 {
		pollInterval = DEFAULT_POLL_INTERVAL_MS
	}
	retryBackoff := config.Cfg.Ingester.RetryBackoffMs
	if retryBackoff == 0 {
		retryBackoff = DEFAULT_RETRY_BACKOFF_MS
	}
	maxRetries := config.Cfg.Ingester.MaxRetries
	if maxRetries == 0 {
		maxRetries = DEFAULT_MAX_RETRIES
	}
	return &Ingester{
		rpc:          rpcClient,
		storage:      s,
		fromHeight:   config.Cfg.Ingester.FromHeight,
		pollInterval: time.Duration(pollInterval) * time.Millisecond,
		retryBackoff: time.Duration(retryBackoff) * time.Millisecond,
		maxRetries:   maxRetries,
	}
}

// Start runs the ingestion loop until the context is cancelled or an
// integrity violation halts it.
func (i *Ingester) Start(ctx context.Context) error {
	log.Info().Str("rpc", i.rpc.GetURL()).Msg("Starting ingester")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Ingester shutting down")
			return ctx.Err()
		default:
		}

		advanced, err := i.IngestNext(ctx)
		if err != nil {
			if errors.Is(err, ErrIntegrityViolation) {
				metrics.IntegrityViolations.Inc()
				log.Error().Err(err).Msg("Integrity violation, halting ingestion")
				return err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			metrics.IngestErrors.Inc()
			log.Warn().Err(err).Msg("Transient ingest error, backing off")
			if !sleepCtx(ctx, i.retryBackoff) {
				return ctx.Err()
			}
			continue
		}
		if !advanced {
			// at the chain head
			if !sleepCtx(ctx, i.pollInterval) {
				return ctx.Err()
			}
		}
	}
}

// IngestNext fetches and commits exactly one block past the current maximum
// indexed height. It returns false when the chain head has been reached.
func (i *Ingester) IngestNext(ctx context.Context) (bool, error) {
	maxHeight, hasBlocks, err := i.storage.GetMaxHeight(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read max indexed height: %w", err)
	}

	target := i.fromHeight
	if hasBlocks {
		target = maxHeight + 1
	}

	data, err := i.fetchWithRetry(ctx, target)
	if err != nil {
		if errors.Is(err, rpc.ErrBlockNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := i.validate(ctx, data, target, maxHeight, hasBlocks); err != nil {
		return false, err
	}

	if err := i.storage.InsertBlockData(ctx, data); err != nil {
		if errors.Is(err, storage.ErrHeightConflict) {
			return false, fmt.Errorf("divergent content at height %d: %w", target, ErrIntegrityViolation)
		}
		return false, fmt.Errorf("failed to store block %d: %w", target, err)
	}

	metrics.SuccessfulIngests.Inc()
	metrics.LastIngestedBlock.Set(float64(data.Block.Height))
	metrics.IngestedTransactions.Add(float64(len(data.Transactions)))
	log.Info().
		Int64("height", data.Block.Height).
		Int("txs", len(data.Transactions)).
		Msg("Ingested block")
	return true, nil
}

func (i *Ingester) fetchWithRetry(ctx context.Context, height int64) (*common.BlockData, error) {
	var lastErr error
	for attempt := 0; attempt <= i.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).Int64("height", height).Int("attempt", attempt).Msg("Retrying block fetch")
			if !sleepCtx(ctx, i.retryBackoff) {
				return nil, ctx.Err()
			}
		}
		data, err := i.rpc.GetBlock(ctx, height)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, rpc.ErrBlockNotFound) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up on block %d after %d retries: %w", height, i.maxRetries, lastErr)
}

// validate enforces the append-only chain invariants before anything is
// written. Failures are fatal to the loop, never skipped over.
func (i *Ingester) validate(ctx context.Context, data *common.BlockData, target, maxHeight int64, hasBlocks bool) error {
	block := &data.Block
	if block.Height != target {
		return fmt.Errorf("node returned height %d for requested height %d: %w", block.Height, target, ErrIntegrityViolation)
	}
	if block.TxCount != len(data.Transactions) {
		return fmt.Errorf("block %d declares %d transactions but carries %d: %w",
			block.Height, block.TxCount, len(data.Transactions), ErrIntegrityViolation)
	}
	for pos, tx := range data.Transactions {
		if tx.Position != pos {
			return fmt.Errorf("block %d transaction at index %d has position %d: %w",
				block.Height, pos, tx.Position, ErrIntegrityViolation)
		}
	}

	if hasBlocks {
		prev, _, err := i.storage.GetBlockByHeight(ctx, maxHeight)
		if err != nil {
			return fmt.Errorf("failed to load block %d for chain check: %w", maxHeight, err)
		}
		if !bytes.Equal(block.ParentHash, prev.Hash) {
			return fmt.Errorf("block %d parent hash %s does not match block %d hash %s: %w",
				block.Height, block.ParentHash.String(), prev.Height, prev.Hash.String(), ErrIntegrityViolation)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
