package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/common"
	"github.com/kovanet/kovascan/internal/storage"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/blocks", GetBlocks)
	r.GET("/blocks/:height", GetBlockByHeight)
	r.GET("/transactions", GetTransactions)
	r.GET("/transactions/:hash", GetTransactionByHash)
	r.GET("/domains", GetDomains)
	r.GET("/rollup_batches", GetRollupBatches)
	r.GET("/governance", GetGovernanceEvents)
	r.GET("/privacy", GetPrivacyActions)
	r.GET("/accounts", GetAccounts)
	r.GET("/stats/chain", GetChainStats)
	r.GET("/stats/da", GetDAStats)
	r.GET("/stats/domains", GetDomainStats)
	return r
}

func newExplorer(t *testing.T) (*gin.Engine, storage.IStorage) {
	t.Helper()
	s, err := storage.NewMemoryConnector(&config.MemoryConfig{MaxItems: 1000})
	require.NoError(t, err)
	SetMainStorage(s)
	return setupRouter(), s
}

func explorerBlock(t *testing.T, s storage.IStorage, height int64, parentHash common.HexBytes, txs ...common.Transaction) common.HexBytes {
	t.Helper()
	hash := common.HexBytes(fmt.Sprintf("hash-%03d", height))
	data := &common.BlockData{
		Block: common.Block{
			Height:      height,
			Hash:        hash,
			ParentHash:  parentHash,
			TimestampMs: 1000 + height*2000,
			Proposer:    common.HexBytes{0x01},
			StateRoot:   common.HexBytes{0x02},
			L1TxRoot:    common.HexBytes{0x03},
			DARoot:      common.HexBytes{0x04},
			DABlobs:     json.RawMessage(`["b1"]`),
			BaseFee:     "1",
			TxCount:     len(txs),
		},
		Transactions: txs,
	}
	require.NoError(t, s.InsertBlockData(context.Background(), data))
	return hash
}

func explorerTx(t *testing.T, height int64, position int, sender common.HexBytes, kind, body string) common.Transaction {
	t.Helper()
	payload, err := common.ParsePayload(kind, json.RawMessage(body))
	require.NoError(t, err)
	return common.Transaction{
		TxHash:      common.HexBytes(fmt.Sprintf("th-%03d-%d", height, position)),
		BlockHeight: height,
		Position:    position,
		ChainId:     "kova-1",
		Sender:      sender,
		PayloadType: kind,
		Payload:     payload,
		Signature:   common.HexBytes{0xee},
		Success:     true,
		Events:      common.PayloadEvents(kind),
	}
}

func doRequest(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	r.ServeHTTP(w, req)
	return w
}

func seedScenario(t *testing.T, s storage.IStorage) common.HexBytes {
	sender := common.HexBytes{0xaa, 0xbb}
	h0 := explorerBlock(t, s, 0, common.HexBytes{0x00})
	h1 := explorerBlock(t, s, 1, h0,
		explorerTx(t, 1, 0, sender, common.PayloadTransfer, `{"to":"0x0b","amount":"5"}`),
		explorerTx(t, 1, 1, sender, common.PayloadStake, `{"amount":"3"}`),
	)
	explorerBlock(t, s, 2, h1)
	return sender
}

func TestGetBlockByHeightWithTransactions(t *testing.T) {
	r, s := newExplorer(t)
	seedScenario(t, s)

	w := doRequest(r, "/blocks/1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Block        common.Block         `json:"block"`
		Transactions []common.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Block.Height)
	assert.Equal(t, 2, resp.Block.TxCount)
	require.Len(t, resp.Transactions, 2)
	assert.Equal(t, 0, resp.Transactions[0].Position)
	assert.Equal(t, 1, resp.Transactions[1].Position)
	assert.Equal(t, "transfer", resp.Transactions[0].PayloadType)
}

func TestGetBlockByHeightNotFound(t *testing.T) {
	r, _ := newExplorer(t)

	w := doRequest(r, "/blocks/99")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "not found")
}

func TestGetBlockByHeightInvalid(t *testing.T) {
	r, _ := newExplorer(t)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, "/blocks/abc").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, "/blocks/-1").Code)
}

func TestListBlocksNewestFirst(t *testing.T) {
	r, s := newExplorer(t)
	seedScenario(t, s)

	w := doRequest(r, "/blocks?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []common.Block `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(2), resp.Data[0].Height)
	assert.Equal(t, int64(1), resp.Data[1].Height)
}

func TestAccountsRollupAfterScenario(t *testing.T) {
	r, s := newExplorer(t)
	sender := seedScenario(t, s)

	w := doRequest(r, "/accounts")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []common.Account `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var acct *common.Account
	for i := range resp.Data {
		if resp.Data[i].Address.String() == sender.String() {
			acct = &resp.Data[i]
		}
	}
	require.NotNil(t, acct)
	assert.Equal(t, int64(2), acct.TxCount)
	assert.Equal(t, int64(1), acct.FirstSeenHeight)
	assert.Equal(t, int64(1), acct.LastSeenHeight)
}

func TestTransactionsSenderFilter(t *testing.T) {
	r, s := newExplorer(t)
	sender := seedScenario(t, s)

	// prefixed and bare hex address the same rows
	for _, q := range []string{sender.String(), "aabb"} {
		w := doRequest(r, "/transactions?sender="+q)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []common.Transaction `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 2)
	}

	w := doRequest(r, "/transactions?sender="+sender.String()+"&limit=1&offset=0")
	var resp struct {
		Data []common.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "stake", resp.Data[0].PayloadType) // newest first
}

func TestTransactionsBadFilters(t *testing.T) {
	r, s := newExplorer(t)
	seedScenario(t, s)

	assert.Equal(t, http.StatusBadRequest, doRequest(r, "/transactions?sender=0xzz").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, "/transactions?filter_nonce=1").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, "/transactions?offset=-5").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, "/transactions?limit=abc").Code)
}

func TestGetTransactionByHash(t *testing.T) {
	r, s := newExplorer(t)
	seedScenario(t, s)

	hash := common.EncodeHex([]byte("th-001-0"))
	w := doRequest(r, "/transactions/"+hash)
	require.Equal(t, http.StatusOK, w.Code)

	var tx common.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tx))
	assert.Equal(t, int64(1), tx.BlockHeight)

	assert.Equal(t, http.StatusNotFound, doRequest(r, "/transactions/0xdead").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, "/transactions/nothex!").Code)
}

func TestPrivacyNullPassthrough(t *testing.T) {
	r, s := newExplorer(t)
	sender := common.HexBytes{0xaa}
	explorerBlock(t, s, 0, common.HexBytes{0x00},
		explorerTx(t, 0, 0, sender, common.PayloadPrivacyDeposit, `{"commitment":"0xaa"}`))

	w := doRequest(r, "/privacy")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "deposit", resp.Data[0]["action"])
	assert.Equal(t, "0xaa", resp.Data[0]["commitment"])
	assert.Nil(t, resp.Data[0]["nullifier"])
	assert.Nil(t, resp.Data[0]["recipient"])
}

func TestRollupBatchesDomainFilter(t *testing.T) {
	r, s := newExplorer(t)
	sender := common.HexBytes{0xaa}
	explorerBlock(t, s, 0, common.HexBytes{0x00},
		explorerTx(t, 0, 0, sender, common.PayloadRollupBatchCommit, `{"domain_id":"dom-1","blob_id":"b1"}`),
		explorerTx(t, 0, 1, sender, common.PayloadRollupBatchCommit, `{"domain_id":"dom-2","blob_id":"b2"}`))

	var resp struct {
		Data []common.RollupBatch `json:"data"`
	}
	w := doRequest(r, "/rollup_batches?domain_id=dom-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "b1", resp.Data[0].BlobId)
}

func TestDomainsEndpoint(t *testing.T) {
	r, s := newExplorer(t)
	sender := common.HexBytes{0xaa}
	explorerBlock(t, s, 0, common.HexBytes{0x00},
		explorerTx(t, 0, 0, sender, common.PayloadDomainCreate, `{"domain_id":"dom-1","params":{"k":1}}`))

	w := doRequest(r, "/domains")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Domains []common.Domain `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Domains, 1)
	assert.Equal(t, "custom", resp.Domains[0].Kind)
}

func TestStatsEndpoints(t *testing.T) {
	r, s := newExplorer(t)

	// empty store: defined zero results, not an error
	w := doRequest(r, "/stats/chain")
	require.Equal(t, http.StatusOK, w.Code)
	var chain common.ChainStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chain))
	assert.Zero(t, chain.Blocks)
	assert.Zero(t, chain.TPS)

	seedScenario(t, s)

	w = doRequest(r, "/stats/chain")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chain))
	assert.Equal(t, int64(3), chain.Blocks)
	assert.Equal(t, int64(2), chain.Height)
	assert.Equal(t, int64(2000), chain.BlockTimeMs)

	w = doRequest(r, "/stats/da")
	require.Equal(t, http.StatusOK, w.Code)
	var da common.DAStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &da))
	assert.InDelta(t, 1.0, da.BlobsPerBlock, 0.0001)

	w = doRequest(r, "/stats/domains")
	require.Equal(t, http.StatusOK, w.Code)
	var domains struct {
		Domains []common.DomainStats `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &domains))
	assert.Empty(t, domains.Domains)
}

func TestInjectedStorageIsSharedWithWriter(t *testing.T) {
	// The combined command injects one connector for both the ingestion
	// loop and the handlers. With no driver configured, a handler hitting
	// storage must use the injected connector rather than building its own.
	prev := config.Cfg.Storage
	config.Cfg.Storage = config.StorageConfig{}
	t.Cleanup(func() { config.Cfg.Storage = prev })

	r, s := newExplorer(t)

	w := doRequest(r, "/blocks")
	require.Equal(t, http.StatusOK, w.Code)

	explorerBlock(t, s, 0, common.HexBytes{0x00},
		explorerTx(t, 0, 0, common.HexBytes{0xaa}, "transfer", `{"to": "0xbb", "amount": "1"}`))

	w = doRequest(r, "/blocks")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []common.Block `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(0), resp.Data[0].Height)
}
