package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/kovanet/kovascan/internal/common"
)

// wireBlock mirrors the node's /get_block JSON. Binary fields travel as
// 0x-hex strings, over-64-bit quantities as decimal strings.
type wireBlock struct {
	Height            int64             `json:"height"`
	Hash              string            `json:"hash"`
	ParentHash        string            `json:"parent_hash"`
	TimestampMs       int64             `json:"timestamp_ms"`
	Proposer          string            `json:"proposer"`
	StateRoot         string            `json:"state_root"`
	L1TxRoot          string            `json:"l1_tx_root"`
	DARoot            string            `json:"da_root"`
	DomainRoots       json.RawMessage   `json:"domain_roots"`
	DABlobs           json.RawMessage   `json:"da_blobs"`
	ConsensusMetadata json.RawMessage   `json:"consensus_metadata"`
	GasUsed           int64             `json:"gas_used"`
	GasLimit          int64             `json:"gas_limit"`
	BaseFee           string            `json:"base_fee"`
	Transactions      []wireTransaction `json:"transactions"`
}

type wireTransaction struct {
	TxHash         string          `json:"tx_hash"`
	Position       int             `json:"position"`
	ChainId        string          `json:"chain_id"`
	Sender         string          `json:"sender"`
	Nonce          int64           `json:"nonce"`
	GasLimit       int64           `json:"gas_limit"`
	GasPrice       *string         `json:"gas_price"`
	MaxFee         *string         `json:"max_fee"`
	MaxPriorityFee *string         `json:"max_priority_fee"`
	PayloadType    string          `json:"payload_type"`
	Payload        json.RawMessage `json:"payload"`
	Signature      string          `json:"signature"`
	Success        bool            `json:"success"`
	Events         []string        `json:"events"`
}

func decodeHexField(name, value string) (common.HexBytes, error) {
	b, err := common.DecodeHex(value)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return b, nil
}

func validateDecimal(name string, value *string) error {
	if value == nil {
		return nil
	}
	if *value == "" {
		return fmt.Errorf("field %s: empty decimal string", name)
	}
	for _, r := range *value {
		if r < '0' || r > '9' {
			return fmt.Errorf("field %s: invalid decimal string %q", name, *value)
		}
	}
	return nil
}

func (w *wireBlock) toBlockData() (*common.BlockData, error) {
	block := common.Block{
		Height:            w.Height,
		TimestampMs:       w.TimestampMs,
		DomainRoots:       w.DomainRoots,
		DABlobs:           w.DABlobs,
		ConsensusMetadata: w.ConsensusMetadata,
		GasUsed:           w.GasUsed,
		GasLimit:          w.GasLimit,
		BaseFee:           w.BaseFee,
		TxCount:           len(w.Transactions),
	}
	if err := validateDecimal("base_fee", &w.BaseFee); err != nil {
		return nil, err
	}

	var err error
	if block.Hash, err = decodeHexField("hash", w.Hash); err != nil {
		return nil, err
	}
	if block.ParentHash, err = decodeHexField("parent_hash", w.ParentHash); err != nil {
		return nil, err
	}
	if block.Proposer, err = decodeHexField("proposer", w.Proposer); err != nil {
		return nil, err
	}
	if block.StateRoot, err = decodeHexField("state_root", w.StateRoot); err != nil {
		return nil, err
	}
	if block.L1TxRoot, err = decodeHexField("l1_tx_root", w.L1TxRoot); err != nil {
		return nil, err
	}
	if block.DARoot, err = decodeHexField("da_root", w.DARoot); err != nil {
		return nil, err
	}

	txs := make([]common.Transaction, 0, len(w.Transactions))
	for i := range w.Transactions {
		tx, err := w.Transactions[i].toTransaction(w.Height)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, *tx)
	}
	return &common.BlockData{Block: block, Transactions: txs}, nil
}

func (w *wireTransaction) toTransaction(blockHeight int64) (*common.Transaction, error) {
	tx := common.Transaction{
		BlockHeight:    blockHeight,
		Position:       w.Position,
		ChainId:        w.ChainId,
		Nonce:          w.Nonce,
		GasLimit:       w.GasLimit,
		GasPrice:       w.GasPrice,
		MaxFee:         w.MaxFee,
		MaxPriorityFee: w.MaxPriorityFee,
		PayloadType:    w.PayloadType,
		Success:        w.Success,
		Events:         w.Events,
	}

	var err error
	if tx.TxHash, err = decodeHexField("tx_hash", w.TxHash); err != nil {
		return nil, err
	}
	if tx.Sender, err = decodeHexField("sender", w.Sender); err != nil {
		return nil, err
	}
	if tx.Signature, err = decodeHexField("signature", w.Signature); err != nil {
		return nil, err
	}
	for name, v := range map[string]*string{
		"gas_price":        w.GasPrice,
		"max_fee":          w.MaxFee,
		"max_priority_fee": w.MaxPriorityFee,
	} {
		if err := validateDecimal(name, v); err != nil {
			return nil, err
		}
	}
	// At most one pricing scheme per transaction: legacy gas_price or the
	// max_fee/max_priority_fee pair, never both.
	if w.GasPrice != nil && (w.MaxFee != nil || w.MaxPriorityFee != nil) {
		return nil, fmt.Errorf("conflicting pricing fields: gas_price set alongside max_fee/max_priority_fee")
	}

	payload, err := common.ParsePayload(w.PayloadType, w.Payload)
	if err != nil {
		return nil, fmt.Errorf("field payload: %w", err)
	}
	tx.Payload = payload

	if len(tx.Events) == 0 {
		tx.Events = common.PayloadEvents(w.PayloadType)
	}
	return &tx, nil
}
