package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/common"
)

func newTestStorage(t *testing.T) *MemoryConnector {
	t.Helper()
	m, err := NewMemoryConnector(&config.MemoryConfig{MaxItems: 1000})
	require.NoError(t, err)
	return m
}

func testBlock(height int64, parentHash common.HexBytes, txs ...common.Transaction) *common.BlockData {
	hash := common.HexBytes(fmt.Sprintf("blockhash-%03d", height))
	return &common.BlockData{
		Block: common.Block{
			Height:      height,
			Hash:        hash,
			ParentHash:  parentHash,
			TimestampMs: 1000 + height*2000,
			Proposer:    common.HexBytes{0xff},
			StateRoot:   common.HexBytes{0x01},
			L1TxRoot:    common.HexBytes{0x02},
			DARoot:      common.HexBytes{0x03},
			DABlobs:     json.RawMessage(`["blob-a","blob-b"]`),
			BaseFee:     "1",
			TxCount:     len(txs),
		},
		Transactions: txs,
	}
}

func testTx(t *testing.T, height int64, position int, sender common.HexBytes, kind, body string) common.Transaction {
	t.Helper()
	payload, err := common.ParsePayload(kind, json.RawMessage(body))
	require.NoError(t, err)
	return common.Transaction{
		TxHash:      common.HexBytes(fmt.Sprintf("tx-%03d-%d", height, position)),
		BlockHeight: height,
		Position:    position,
		ChainId:     "kova-1",
		Sender:      sender,
		GasLimit:    21000,
		PayloadType: kind,
		Payload:     payload,
		Signature:   common.HexBytes{0xee},
		Success:     true,
		Events:      common.PayloadEvents(kind),
	}
}

func ingestChain(t *testing.T, m *MemoryConnector, blocks ...*common.BlockData) {
	t.Helper()
	for _, b := range blocks {
		require.NoError(t, m.InsertBlockData(context.Background(), b))
	}
}

func TestInsertAndGetBlock(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	b1 := testBlock(0, common.HexBytes{0x00})
	b2 := testBlock(1, b1.Block.Hash,
		testTx(t, 1, 0, sender, common.PayloadTransfer, `{"to":"0x0b","amount":"5"}`),
		testTx(t, 1, 1, sender, common.PayloadStake, `{"amount":"3"}`),
	)
	ingestChain(t, m, b1, b2)

	block, txs, err := m.GetBlockByHeight(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), block.Height)
	assert.Equal(t, 2, block.TxCount)
	require.Len(t, txs, 2)
	assert.Equal(t, 0, txs[0].Position)
	assert.Equal(t, 1, txs[1].Position)
	require.NotNil(t, txs[0].Payload.Transfer)
	assert.Equal(t, "5", txs[0].Payload.Transfer.Amount)

	_, _, err = m.GetBlockByHeight(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIdempotentReingest(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	b := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, sender, common.PayloadTransfer, `{"to":"0x0b","amount":"5"}`))
	ingestChain(t, m, b)

	// identical content is a no-op, counters unchanged
	require.NoError(t, m.InsertBlockData(context.Background(), b))

	accounts, err := m.GetAccounts(context.Background(), QueryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, a := range accounts {
		assert.Equal(t, int64(1), a.TxCount)
	}
}

func TestDivergentReingestConflicts(t *testing.T) {
	m := newTestStorage(t)
	ingestChain(t, m, testBlock(0, common.HexBytes{0x00}))

	divergent := testBlock(0, common.HexBytes{0x00})
	divergent.Block.Hash = common.HexBytes("other-hash")
	err := m.InsertBlockData(context.Background(), divergent)
	assert.ErrorIs(t, err, ErrHeightConflict)
}

func TestGetMaxHeight(t *testing.T) {
	m := newTestStorage(t)
	_, ok, err := m.GetMaxHeight(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	b0 := testBlock(0, common.HexBytes{0x00})
	b1 := testBlock(1, b0.Block.Hash)
	ingestChain(t, m, b0, b1)

	max, ok, err := m.GetMaxHeight(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), max)
}

func TestGetBlocksPagination(t *testing.T) {
	m := newTestStorage(t)
	prev := common.HexBytes{0x00}
	for h := int64(0); h < 5; h++ {
		b := testBlock(h, prev)
		ingestChain(t, m, b)
		prev = b.Block.Hash
	}

	page1, err := m.GetBlocks(context.Background(), QueryFilter{Limit: 2, Offset: 0})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(4), page1[0].Height)
	assert.Equal(t, int64(3), page1[1].Height)

	page2, err := m.GetBlocks(context.Background(), QueryFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, int64(2), page2[0].Height)

	tail, err := m.GetBlocks(context.Background(), QueryFilter{Limit: 10, Offset: 4})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(0), tail[0].Height)

	empty, err := m.GetBlocks(context.Background(), QueryFilter{Limit: 10, Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetTransactionsSenderFilter(t *testing.T) {
	m := newTestStorage(t)
	alice := common.HexBytes{0xaa}
	bob := common.HexBytes{0xbb}
	b0 := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, alice, common.PayloadStake, `{"amount":"1"}`))
	b1 := testBlock(1, b0.Block.Hash,
		testTx(t, 1, 0, bob, common.PayloadStake, `{"amount":"2"}`),
		testTx(t, 1, 1, alice, common.PayloadStake, `{"amount":"3"}`))
	ingestChain(t, m, b0, b1)

	all, err := m.GetTransactions(context.Background(), QueryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first by insertion id
	assert.True(t, all[0].Id > all[1].Id)

	fromAlice, err := m.GetTransactions(context.Background(), QueryFilter{Limit: 10, Sender: alice})
	require.NoError(t, err)
	require.Len(t, fromAlice, 2)

	newest, err := m.GetTransactions(context.Background(), QueryFilter{Limit: 1, Sender: alice})
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, int64(1), newest[0].BlockHeight)
}

func TestGetTransactionByHash(t *testing.T) {
	m := newTestStorage(t)
	tx := testTx(t, 0, 0, common.HexBytes{0x0a}, common.PayloadStake, `{"amount":"1"}`)
	ingestChain(t, m, testBlock(0, common.HexBytes{0x00}, tx))

	got, err := m.GetTransactionByHash(context.Background(), tx.TxHash)
	require.NoError(t, err)
	assert.Equal(t, tx.TxHash, got.TxHash)

	_, err = m.GetTransactionByHash(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountRollup(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	recipient := common.HexBytes{0x0b}
	b0 := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, sender, common.PayloadTransfer, `{"to":"0x0b","amount":"1"}`))
	b1 := testBlock(1, b0.Block.Hash,
		testTx(t, 1, 0, sender, common.PayloadStake, `{"amount":"2"}`))
	ingestChain(t, m, b0, b1)

	accounts, err := m.GetAccounts(context.Background(), QueryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	byAddr := map[string]common.Account{}
	for _, a := range accounts {
		byAddr[a.Address.String()] = a
	}

	s := byAddr[sender.String()]
	assert.Equal(t, int64(0), s.FirstSeenHeight)
	assert.Equal(t, int64(1), s.LastSeenHeight)
	assert.Equal(t, int64(2), s.TxCount)

	r := byAddr[recipient.String()]
	assert.Equal(t, int64(0), r.FirstSeenHeight)
	assert.Equal(t, int64(0), r.LastSeenHeight)
	assert.Equal(t, int64(1), r.TxCount)

	// most recent activity first
	assert.Equal(t, sender.String(), accounts[0].Address.String())
}

func TestDomainUpsertLastWriteWins(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	b0 := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, sender, common.PayloadDomainCreate, `{"domain_id":"dom-1","params":{"max":1}}`))
	b1 := testBlock(1, b0.Block.Hash,
		testTx(t, 1, 0, sender, common.PayloadDomainConfigUpdate, `{"domain_id":"dom-1","params":{"max":2}}`))
	ingestChain(t, m, b0, b1)

	domains, err := m.GetDomains(context.Background())
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "dom-1", domains[0].DomainId)
	assert.Equal(t, "custom", domains[0].Kind)
	assert.Equal(t, "shared_security", domains[0].SecurityModel)
	assert.JSONEq(t, `{"max":2}`, string(domains[0].RiskParams))
	assert.False(t, domains[0].UpdatedAt.Before(domains[0].CreatedAt))
}

func TestRollupBatchesAndDomainFilter(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	b0 := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, sender, common.PayloadRollupBatchCommit, `{"domain_id":"dom-1","blob_id":"b1"}`),
		testTx(t, 0, 1, sender, common.PayloadRollupBatchCommit, `{"domain_id":"dom-2","blob_id":"b2"}`))
	ingestChain(t, m, b0)

	all, err := m.GetRollupBatches(context.Background(), QueryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Id > all[1].Id)
	assert.NotZero(t, all[0].TxId)

	dom1, err := m.GetRollupBatches(context.Background(), QueryFilter{Limit: 10, DomainId: "dom-1"})
	require.NoError(t, err)
	require.Len(t, dom1, 1)
	assert.Equal(t, "b1", dom1[0].BlobId)
}

func TestGovernanceAndPrivacyRows(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	b0 := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, sender, common.PayloadGovernanceVote, `{"proposal_id":4,"support":true,"weight":"9"}`),
		testTx(t, 0, 1, sender, common.PayloadPrivacyDeposit, `{"commitment":"0xaa"}`))
	ingestChain(t, m, b0)

	events, err := m.GetGovernanceEvents(context.Background(), QueryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "vote", events[0].Kind)
	require.NotNil(t, events[0].ProposalId)
	assert.Equal(t, int64(4), *events[0].ProposalId)

	actions, err := m.GetPrivacyActions(context.Background(), QueryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "deposit", actions[0].Action)
	assert.Equal(t, common.HexBytes{0xaa}, actions[0].Commitment)
	assert.Nil(t, actions[0].Nullifier)
}

func TestDeleteBlockRemovesSubtree(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	b0 := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, sender, common.PayloadRollupBatchCommit, `{"domain_id":"dom-1","blob_id":"b1"}`))
	ingestChain(t, m, b0)

	require.NoError(t, m.DeleteBlock(context.Background(), 0))

	_, _, err := m.GetBlockByHeight(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)

	batches, err := m.GetRollupBatches(context.Background(), QueryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, batches)

	_, ok, err := m.GetMaxHeight(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, m.DeleteBlock(context.Background(), 0), ErrNotFound)
}

func TestChainStats(t *testing.T) {
	m := newTestStorage(t)

	stats, err := m.GetChainStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Blocks)
	assert.Zero(t, stats.TPS)

	b0 := testBlock(0, common.HexBytes{0x00})
	ingestChain(t, m, b0)
	stats, err = m.GetChainStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Blocks)
	assert.Zero(t, stats.BlockTimeMs)
	assert.Zero(t, stats.TPS)

	b1 := testBlock(1, b0.Block.Hash,
		testTx(t, 1, 0, common.HexBytes{0x0a}, common.PayloadStake, `{"amount":"1"}`))
	ingestChain(t, m, b1)
	stats, err = m.GetChainStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Blocks)
	assert.Equal(t, int64(1), stats.Height)
	// 2000ms span, 2 blocks
	assert.Equal(t, int64(2000), stats.BlockTimeMs)
	assert.InDelta(t, 0.5, stats.TPS, 0.0001)
}

func TestDAAndDomainStats(t *testing.T) {
	m := newTestStorage(t)
	sender := common.HexBytes{0x0a}
	b0 := testBlock(0, common.HexBytes{0x00},
		testTx(t, 0, 0, sender, common.PayloadRollupBatchCommit, `{"domain_id":"dom-1","blob_id":"b1"}`))
	b1 := testBlock(1, b0.Block.Hash,
		testTx(t, 1, 0, sender, common.PayloadRollupBatchCommit, `{"domain_id":"dom-1","blob_id":"b2"}`))
	ingestChain(t, m, b0, b1)

	da, err := m.GetDAStats(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, da.BlobsPerBlock, 0.0001)

	domains, err := m.GetDomainStats(context.Background())
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "dom-1", domains[0].DomainId)
	assert.Equal(t, int64(2), domains[0].Batches)
	assert.Equal(t, int64(1), domains[0].LastHeight)
}
