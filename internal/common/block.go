package common

import (
	"encoding/json"
	"time"
)

// Block is the unit of chain progress at a given height. It owns an ordered
// list of transactions; every dependent row in storage hangs off its height.
type Block struct {
	Height            int64           `json:"height"`
	Hash              HexBytes        `json:"hash"`
	ParentHash        HexBytes        `json:"parent_hash"`
	TimestampMs       int64           `json:"timestamp_ms"`
	Proposer          HexBytes        `json:"proposer"`
	StateRoot         HexBytes        `json:"state_root"`
	L1TxRoot          HexBytes        `json:"l1_tx_root"`
	DARoot            HexBytes        `json:"da_root"`
	DomainRoots       json.RawMessage `json:"domain_roots"`
	GasUsed           int64           `json:"gas_used"`
	GasLimit          int64           `json:"gas_limit"`
	BaseFee           string          `json:"base_fee"`
	TxCount           int             `json:"tx_count"`
	DABlobs           json.RawMessage `json:"da_blobs"`
	ConsensusMetadata json.RawMessage `json:"consensus_metadata"`
}

// BlockData is the unit of ingestion: a block plus all transactions it owns,
// already positioned. Storage writes it as one atomic unit.
type BlockData struct {
	Block        Block
	Transactions []Transaction
}

// DABlobCount returns the number of blob references carried by the block.
func (b *Block) DABlobCount() int {
	if len(b.DABlobs) == 0 {
		return 0
	}
	var blobs []json.RawMessage
	if err := json.Unmarshal(b.DABlobs, &blobs); err != nil {
		return 0
	}
	return len(blobs)
}

// Transaction belongs to exactly one block. Position is the dense 0-based
// order within the block; Id is the storage insertion id used as the recency
// key for listings. At most one of GasPrice / MaxFee+MaxPriorityFee is set.
type Transaction struct {
	Id             int64     `json:"id"`
	TxHash         HexBytes  `json:"tx_hash"`
	BlockHeight    int64     `json:"block_height"`
	Position       int       `json:"position"`
	ChainId        string    `json:"chain_id"`
	Sender         HexBytes  `json:"sender"`
	Nonce          int64     `json:"nonce"`
	GasLimit       int64     `json:"gas_limit"`
	GasPrice       *string   `json:"gas_price"`
	MaxFee         *string   `json:"max_fee"`
	MaxPriorityFee *string   `json:"max_priority_fee"`
	PayloadType    string    `json:"payload_type"`
	Payload        TxPayload `json:"payload"`
	Signature      HexBytes  `json:"signature"`
	Success        bool      `json:"success"`
	Events         []string  `json:"events"`
	CreatedAt      time.Time `json:"created_at"`
}
