package storage

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/common"
)

type PostgresConnector struct {
	db  *sql.DB
	cfg *config.PostgresConfig
}

func NewPostgresConnector(cfg *config.PostgresConfig) (*PostgresConnector, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
		log.Info().Msg("No SSL mode specified, defaulting to 'require' for secure connection")
	}
	connStr += fmt.Sprintf(" sslmode=%s", sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Second)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresConnector{db: db, cfg: cfg}, nil
}

func nullableNumeric(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func jsonbOrDefault(v []byte, def string) []byte {
	if len(v) == 0 {
		return []byte(def)
	}
	return v
}

// InsertBlockData writes a block and everything it owns inside one database
// transaction. Re-ingesting identical content is a no-op; divergent content
// at an ingested height returns ErrHeightConflict.
func (p *PostgresConnector) InsertBlockData(ctx context.Context, data *common.BlockData) error {
	block := &data.Block

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Error().Err(err).Msg("Failed to roll back block insert transaction")
		}
	}()

	var existingHash []byte
	err = tx.QueryRowContext(ctx, `SELECT hash FROM blocks WHERE height = $1`, block.Height).Scan(&existingHash)
	switch {
	case err == nil:
		if bytes.Equal(existingHash, block.Hash) {
			return nil
		}
		return fmt.Errorf("height %d already indexed with hash %s: %w",
			block.Height, common.EncodeHex(existingHash), ErrHeightConflict)
	case err != sql.ErrNoRows:
		return fmt.Errorf("failed to check existing block at height %d: %w", block.Height, err)
	}

	baseFee := block.BaseFee
	if baseFee == "" {
		baseFee = "0"
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO blocks (
			height, hash, parent_hash, timestamp_ms, proposer, state_root, l1_tx_root,
			da_root, domain_roots, gas_used, gas_limit, base_fee, tx_count,
			da_blobs, consensus_metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		block.Height, []byte(block.Hash), []byte(block.ParentHash), block.TimestampMs,
		[]byte(block.Proposer), []byte(block.StateRoot), []byte(block.L1TxRoot), []byte(block.DARoot),
		jsonbOrDefault(block.DomainRoots, "[]"), block.GasUsed, block.GasLimit, baseFee,
		len(data.Transactions), jsonbOrDefault(block.DABlobs, "[]"),
		jsonbOrDefault(block.ConsensusMetadata, "{}"))
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", block.Height, err)
	}

	for i := range data.Transactions {
		if err := p.insertTransaction(ctx, tx, &data.Transactions[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", block.Height, err)
	}
	return nil
}

func (p *PostgresConnector) insertTransaction(ctx context.Context, tx *sql.Tx, t *common.Transaction) error {
	payload, err := t.Payload.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal payload for tx %s: %w", t.TxHash.String(), err)
	}
	events := t.Events
	if events == nil {
		events = []string{}
	}

	var txId int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (
			tx_hash, block_height, position, chain_id, sender, nonce, gas_limit,
			gas_price, max_fee, max_priority_fee, payload_type, payload, signature,
			success, events
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		[]byte(t.TxHash), t.BlockHeight, t.Position, t.ChainId, []byte(t.Sender),
		t.Nonce, t.GasLimit, nullableNumeric(t.GasPrice), nullableNumeric(t.MaxFee),
		nullableNumeric(t.MaxPriorityFee), t.PayloadType, payload, []byte(t.Signature),
		t.Success, pq.Array(events)).Scan(&txId)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", t.TxHash.String(), err)
	}
	t.Id = txId

	fx := common.DeriveSideEffects(t)

	if fx.Batch != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rollup_batches (domain_id, blob_id, block_height, tx_id)
			VALUES ($1,$2,$3,$4)`,
			fx.Batch.DomainId, fx.Batch.BlobId, t.BlockHeight, txId)
		if err != nil {
			return fmt.Errorf("failed to insert rollup batch for tx %s: %w", t.TxHash.String(), err)
		}
	}

	if fx.Governance != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO governance_events (tx_id, kind, proposal_id, support, weight, payload)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			txId, fx.Governance.Kind, fx.Governance.ProposalId, fx.Governance.Support,
			nullableNumeric(fx.Governance.Weight), jsonbOrDefault(fx.Governance.Payload, "null"))
		if err != nil {
			return fmt.Errorf("failed to insert governance event for tx %s: %w", t.TxHash.String(), err)
		}
	}

	if fx.Privacy != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO privacy_actions (tx_id, action, commitment, nullifier, recipient)
			VALUES ($1,$2,$3,$4,$5)`,
			txId, fx.Privacy.Action, []byte(fx.Privacy.Commitment),
			[]byte(fx.Privacy.Nullifier), []byte(fx.Privacy.Recipient))
		if err != nil {
			return fmt.Errorf("failed to insert privacy action for tx %s: %w", t.TxHash.String(), err)
		}
	}

	if fx.Domain != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO domains (domain_id, kind, security_model, risk_params, created_at, updated_at)
			VALUES ($1,'custom','shared_security',$2,NOW(),NOW())
			ON CONFLICT (domain_id) DO UPDATE SET
				risk_params = EXCLUDED.risk_params,
				updated_at = NOW()`,
			fx.Domain.DomainId, jsonbOrDefault(fx.Domain.RiskParams, "{}"))
		if err != nil {
			return fmt.Errorf("failed to upsert domain %s: %w", fx.Domain.DomainId, err)
		}
	}

	for _, addr := range fx.TouchedAccounts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accounts (address, first_seen_height, last_seen_height, tx_count, updated_at)
			VALUES ($1,$2,$2,1,NOW())
			ON CONFLICT (address) DO UPDATE SET
				last_seen_height = GREATEST(accounts.last_seen_height, EXCLUDED.last_seen_height),
				tx_count = accounts.tx_count + 1,
				updated_at = NOW()`,
			[]byte(addr), t.BlockHeight)
		if err != nil {
			return fmt.Errorf("failed to touch account %s: %w", addr.String(), err)
		}
	}

	return nil
}

// DeleteBlock removes a block; the schema cascades to every dependent row.
// This is the only supported bulk-removal mechanism.
func (p *PostgresConnector) DeleteBlock(ctx context.Context, height int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM blocks WHERE height = $1`, height)
	if err != nil {
		return fmt.Errorf("failed to delete block %d: %w", height, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresConnector) GetMaxHeight(ctx context.Context) (int64, bool, error) {
	var height sql.NullInt64
	err := p.db.QueryRowContext(ctx, `SELECT MAX(height) FROM blocks`).Scan(&height)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query max height: %w", err)
	}
	if !height.Valid {
		return 0, false, nil
	}
	return height.Int64, true, nil
}

const blockColumns = `height, hash, parent_hash, timestamp_ms, proposer, state_root, l1_tx_root,
	da_root, domain_roots, gas_used, gas_limit, base_fee::text, tx_count, da_blobs, consensus_metadata`

func scanBlock(scanner interface{ Scan(...interface{}) error }) (common.Block, error) {
	var b common.Block
	var hash, parentHash, proposer, stateRoot, l1TxRoot, daRoot []byte
	var domainRoots, daBlobs, consensusMetadata []byte
	err := scanner.Scan(&b.Height, &hash, &parentHash, &b.TimestampMs, &proposer,
		&stateRoot, &l1TxRoot, &daRoot, &domainRoots, &b.GasUsed, &b.GasLimit,
		&b.BaseFee, &b.TxCount, &daBlobs, &consensusMetadata)
	if err != nil {
		return b, err
	}
	b.Hash = hash
	b.ParentHash = parentHash
	b.Proposer = proposer
	b.StateRoot = stateRoot
	b.L1TxRoot = l1TxRoot
	b.DARoot = daRoot
	b.DomainRoots = domainRoots
	b.DABlobs = daBlobs
	b.ConsensusMetadata = consensusMetadata
	return b, nil
}

func (p *PostgresConnector) GetBlocks(ctx context.Context, qf QueryFilter) ([]common.Block, error) {
	query := fmt.Sprintf(`SELECT %s FROM blocks ORDER BY height DESC LIMIT $1 OFFSET $2`, blockColumns)
	rows, err := p.db.QueryContext(ctx, query, qf.Limit, qf.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer closeRows(rows, "GetBlocks")

	blocks := make([]common.Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (p *PostgresConnector) GetBlockByHeight(ctx context.Context, height int64) (*common.Block, []common.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM blocks WHERE height = $1`, blockColumns)
	b, err := scanBlock(p.db.QueryRowContext(ctx, query, height))
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query block %d: %w", height, err)
	}

	txQuery := fmt.Sprintf(`SELECT %s FROM transactions WHERE block_height = $1 ORDER BY position ASC`, txColumns)
	rows, err := p.db.QueryContext(ctx, txQuery, height)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query transactions of block %d: %w", height, err)
	}
	defer closeRows(rows, "GetBlockByHeight")

	txs := make([]common.Transaction, 0, b.TxCount)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return &b, txs, rows.Err()
}

const txColumns = `id, tx_hash, block_height, position, chain_id, sender, nonce, gas_limit,
	gas_price::text, max_fee::text, max_priority_fee::text, payload_type, payload, signature,
	success, events, created_at`

func scanTransaction(scanner interface{ Scan(...interface{}) error }) (common.Transaction, error) {
	var t common.Transaction
	var txHash, sender, signature, payload []byte
	var gasPrice, maxFee, maxPriorityFee sql.NullString
	var events pq.StringArray
	err := scanner.Scan(&t.Id, &txHash, &t.BlockHeight, &t.Position, &t.ChainId, &sender,
		&t.Nonce, &t.GasLimit, &gasPrice, &maxFee, &maxPriorityFee, &t.PayloadType,
		&payload, &signature, &t.Success, &events, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	t.TxHash = txHash
	t.Sender = sender
	t.Signature = signature
	t.Events = events
	if gasPrice.Valid {
		t.GasPrice = &gasPrice.String
	}
	if maxFee.Valid {
		t.MaxFee = &maxFee.String
	}
	if maxPriorityFee.Valid {
		t.MaxPriorityFee = &maxPriorityFee.String
	}
	t.Payload.Raw = payload
	if err := t.Payload.Rehydrate(t.PayloadType); err != nil {
		return t, fmt.Errorf("failed to parse payload of tx %s: %w", t.TxHash.String(), err)
	}
	return t, nil
}

func (p *PostgresConnector) GetTransactions(ctx context.Context, qf QueryFilter) ([]common.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions`, txColumns)
	args := []interface{}{}
	if len(qf.Sender) > 0 {
		query += ` WHERE sender = $1`
		args = append(args, qf.Sender)
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, qf.Limit, qf.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer closeRows(rows, "GetTransactions")

	txs := make([]common.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (p *PostgresConnector) GetTransactionByHash(ctx context.Context, hash []byte) (*common.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE tx_hash = $1`, txColumns)
	t, err := scanTransaction(p.db.QueryRowContext(ctx, query, hash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %s: %w", common.EncodeHex(hash), err)
	}
	return &t, nil
}

func (p *PostgresConnector) GetDomains(ctx context.Context) ([]common.Domain, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT domain_id, kind, security_model, sequencer_binding, bridge_contracts,
		       risk_params, created_at, updated_at
		FROM domains ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	defer closeRows(rows, "GetDomains")

	domains := make([]common.Domain, 0)
	for rows.Next() {
		var d common.Domain
		var sequencerBinding sql.NullString
		var bridgeContracts, riskParams []byte
		if err := rows.Scan(&d.DomainId, &d.Kind, &d.SecurityModel, &sequencerBinding,
			&bridgeContracts, &riskParams, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning domain: %w", err)
		}
		if sequencerBinding.Valid {
			d.SequencerBinding = &sequencerBinding.String
		}
		d.BridgeContracts = bridgeContracts
		d.RiskParams = riskParams
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (p *PostgresConnector) GetRollupBatches(ctx context.Context, qf QueryFilter) ([]common.RollupBatch, error) {
	query := `SELECT id, domain_id, blob_id, block_height, tx_id FROM rollup_batches`
	args := []interface{}{}
	if qf.DomainId != "" {
		query += ` WHERE domain_id = $1`
		args = append(args, qf.DomainId)
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, qf.Limit, qf.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollup batches: %w", err)
	}
	defer closeRows(rows, "GetRollupBatches")

	batches := make([]common.RollupBatch, 0)
	for rows.Next() {
		var b common.RollupBatch
		if err := rows.Scan(&b.Id, &b.DomainId, &b.BlobId, &b.BlockHeight, &b.TxId); err != nil {
			return nil, fmt.Errorf("error scanning rollup batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (p *PostgresConnector) GetGovernanceEvents(ctx context.Context, qf QueryFilter) ([]common.GovernanceEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tx_id, kind, proposal_id, support, weight::text, payload
		FROM governance_events ORDER BY id DESC LIMIT $1 OFFSET $2`, qf.Limit, qf.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query governance events: %w", err)
	}
	defer closeRows(rows, "GetGovernanceEvents")

	events := make([]common.GovernanceEvent, 0)
	for rows.Next() {
		var e common.GovernanceEvent
		var proposalId sql.NullInt64
		var support sql.NullBool
		var weight sql.NullString
		var payload []byte
		if err := rows.Scan(&e.Id, &e.TxId, &e.Kind, &proposalId, &support, &weight, &payload); err != nil {
			return nil, fmt.Errorf("error scanning governance event: %w", err)
		}
		if proposalId.Valid {
			e.ProposalId = &proposalId.Int64
		}
		if support.Valid {
			e.Support = &support.Bool
		}
		if weight.Valid {
			e.Weight = &weight.String
		}
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *PostgresConnector) GetPrivacyActions(ctx context.Context, qf QueryFilter) ([]common.PrivacyAction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tx_id, action, commitment, nullifier, recipient
		FROM privacy_actions ORDER BY id DESC LIMIT $1 OFFSET $2`, qf.Limit, qf.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query privacy actions: %w", err)
	}
	defer closeRows(rows, "GetPrivacyActions")

	actions := make([]common.PrivacyAction, 0)
	for rows.Next() {
		var a common.PrivacyAction
		var commitment, nullifier, recipient []byte
		if err := rows.Scan(&a.Id, &a.TxId, &a.Action, &commitment, &nullifier, &recipient); err != nil {
			return nil, fmt.Errorf("error scanning privacy action: %w", err)
		}
		a.Commitment = commitment
		a.Nullifier = nullifier
		a.Recipient = recipient
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (p *PostgresConnector) GetAccounts(ctx context.Context, qf QueryFilter) ([]common.Account, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT address, first_seen_height, last_seen_height, tx_count, updated_at
		FROM accounts ORDER BY last_seen_height DESC, address ASC LIMIT $1 OFFSET $2`,
		qf.Limit, qf.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer closeRows(rows, "GetAccounts")

	accounts := make([]common.Account, 0)
	for rows.Next() {
		var a common.Account
		var address []byte
		if err := rows.Scan(&address, &a.FirstSeenHeight, &a.LastSeenHeight, &a.TxCount, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning account: %w", err)
		}
		a.Address = address
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (p *PostgresConnector) GetChainStats(ctx context.Context) (common.ChainStats, error) {
	var stats common.ChainStats
	var minTs, maxTs sql.NullInt64
	var txTotal sql.NullInt64
	var maxHeight sql.NullInt64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(height), MIN(timestamp_ms), MAX(timestamp_ms), SUM(tx_count)
		FROM blocks`).Scan(&stats.Blocks, &maxHeight, &minTs, &maxTs, &txTotal)
	if err != nil {
		return stats, fmt.Errorf("failed to query chain stats: %w", err)
	}
	if maxHeight.Valid {
		stats.Height = maxHeight.Int64
	}
	if stats.Blocks >= 2 && maxTs.Int64 > minTs.Int64 {
		spanMs := maxTs.Int64 - minTs.Int64
		stats.BlockTimeMs = spanMs / (stats.Blocks - 1)
		stats.TPS = float64(txTotal.Int64) / (float64(spanMs) / 1000.0)
	}
	return stats, nil
}

func (p *PostgresConnector) GetDAStats(ctx context.Context) (common.DAStats, error) {
	var stats common.DAStats
	var avg sql.NullFloat64
	err := p.db.QueryRowContext(ctx,
		`SELECT AVG(jsonb_array_length(da_blobs)) FROM blocks`).Scan(&avg)
	if err != nil {
		return stats, fmt.Errorf("failed to query DA stats: %w", err)
	}
	if avg.Valid {
		stats.BlobsPerBlock = avg.Float64
	}
	return stats, nil
}

func (p *PostgresConnector) GetDomainStats(ctx context.Context) ([]common.DomainStats, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT domain_id, COUNT(*), MAX(block_height)
		FROM rollup_batches GROUP BY domain_id ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain stats: %w", err)
	}
	defer closeRows(rows, "GetDomainStats")

	stats := make([]common.DomainStats, 0)
	for rows.Next() {
		var s common.DomainStats
		if err := rows.Scan(&s.DomainId, &s.Batches, &s.LastHeight); err != nil {
			return nil, fmt.Errorf("error scanning domain stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (p *PostgresConnector) Close() error {
	return p.db.Close()
}

func closeRows(rows *sql.Rows, caller string) {
	if err := rows.Close(); err != nil {
		log.Error().Err(err).Msgf("Failed to close rows in %s", caller)
	}
}
