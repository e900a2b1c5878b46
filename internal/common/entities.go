package common

import (
	"encoding/json"
	"time"
)

// Domain is a logical sub-ledger/rollup context. Unlike the per-height
// subtree it has an independent lifecycle and is mutable: later configuration
// transactions overwrite its parameters last-write-wins.
type Domain struct {
	DomainId         string          `json:"domain_id"`
	Kind             string          `json:"kind"`
	SecurityModel    string          `json:"security_model"`
	SequencerBinding *string         `json:"sequencer_binding"`
	BridgeContracts  json.RawMessage `json:"bridge_contracts"`
	RiskParams       json.RawMessage `json:"risk_params"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// RollupBatch is a posted unit of domain transaction data anchored by the
// commit transaction TxId inside block BlockHeight.
type RollupBatch struct {
	Id          int64  `json:"id"`
	DomainId    string `json:"domain_id"`
	BlobId      string `json:"blob_id"`
	BlockHeight int64  `json:"block_height"`
	TxId        int64  `json:"tx_id"`
}

type GovernanceEvent struct {
	Id         int64           `json:"id"`
	TxId       int64           `json:"tx_id"`
	Kind       string          `json:"kind"`
	ProposalId *int64          `json:"proposal_id"`
	Support    *bool           `json:"support"`
	Weight     *string         `json:"weight"`
	Payload    json.RawMessage `json:"payload"`
}

type PrivacyAction struct {
	Id         int64    `json:"id"`
	TxId       int64    `json:"tx_id"`
	Action     string   `json:"action"`
	Commitment HexBytes `json:"commitment"`
	Nullifier  HexBytes `json:"nullifier"`
	Recipient  HexBytes `json:"recipient"`
}

// Account is a derived rollup maintained by the ingester. LastSeenHeight
// never decreases and TxCount is monotonically non-decreasing.
type Account struct {
	Address         HexBytes  `json:"address"`
	FirstSeenHeight int64     `json:"first_seen_height"`
	LastSeenHeight  int64     `json:"last_seen_height"`
	TxCount         int64     `json:"tx_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ChainStats is a point-in-time estimate computed from the base tables, not a
// materialized counter. Zero-valued rates when fewer than two blocks exist.
type ChainStats struct {
	Height      int64   `json:"height"`
	Blocks      int64   `json:"blocks"`
	BlockTimeMs int64   `json:"block_time_ms"`
	TPS         float64 `json:"tps"`
}

type DAStats struct {
	BlobsPerBlock float64 `json:"blobs_per_block"`
}

// DomainStats summarizes rollup batch activity per domain.
type DomainStats struct {
	DomainId   string `json:"domain_id"`
	Batches    int64  `json:"batches"`
	LastHeight int64  `json:"last_height"`
}
