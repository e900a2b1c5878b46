package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/common"
)

// MemoryConnector implements IStorage over an in-process LRU of JSON-encoded
// entries. It backs tests and dev mode; sizing the cache below the working
// set silently drops history, so production uses postgres.
type MemoryConnector struct {
	cache *lru.Cache[string, string]

	mu        sync.RWMutex
	nextTxId  int64
	nextRowId int64
	maxHeight int64
	hasBlocks bool
}

// storedBlock is the per-height subtree: the block, its transactions and all
// derived rows, deleted together when the height is deleted.
type storedBlock struct {
	Block        common.Block             `json:"block"`
	Transactions []common.Transaction     `json:"transactions"`
	Batches      []common.RollupBatch     `json:"batches"`
	Governance   []common.GovernanceEvent `json:"governance"`
	Privacy      []common.PrivacyAction   `json:"privacy"`
}

func NewMemoryConnector(cfg *config.MemoryConfig) (*MemoryConnector, error) {
	maxItems := 10000
	if cfg != nil && cfg.MaxItems > 0 {
		maxItems = cfg.MaxItems
	}

	cache, err := lru.New[string, string](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &MemoryConnector{cache: cache, nextTxId: 1, nextRowId: 1}, nil
}

func blockKey(height int64) string {
	return fmt.Sprintf("block:%020d", height)
}

func domainKey(id string) string {
	return "domain:" + id
}

func accountKey(addr []byte) string {
	return "account:" + common.EncodeHex(addr)
}

func (m *MemoryConnector) putJSON(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.cache.Add(key, string(b))
	return nil
}

func (m *MemoryConnector) getJSON(key string, v interface{}) (bool, error) {
	raw, ok := m.cache.Get(key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), v)
}

func (m *MemoryConnector) InsertBlockData(ctx context.Context, data *common.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var existing storedBlock
	if ok, err := m.getJSON(blockKey(data.Block.Height), &existing); err != nil {
		return err
	} else if ok {
		if bytes.Equal(existing.Block.Hash, data.Block.Hash) {
			return nil
		}
		return fmt.Errorf("height %d already indexed with hash %s: %w",
			data.Block.Height, existing.Block.Hash.String(), ErrHeightConflict)
	}

	sb := storedBlock{Block: data.Block}
	sb.Block.TxCount = len(data.Transactions)
	now := time.Now().UTC()

	for i := range data.Transactions {
		t := data.Transactions[i]
		t.Id = m.nextTxId
		t.CreatedAt = now
		m.nextTxId++

		fx := common.DeriveSideEffects(&t)
		if fx.Batch != nil {
			batch := *fx.Batch
			batch.Id = m.nextRowId
			batch.BlockHeight = t.BlockHeight
			batch.TxId = t.Id
			m.nextRowId++
			sb.Batches = append(sb.Batches, batch)
		}
		if fx.Governance != nil {
			ev := *fx.Governance
			ev.Id = m.nextRowId
			ev.TxId = t.Id
			m.nextRowId++
			sb.Governance = append(sb.Governance, ev)
		}
		if fx.Privacy != nil {
			action := *fx.Privacy
			action.Id = m.nextRowId
			action.TxId = t.Id
			m.nextRowId++
			sb.Privacy = append(sb.Privacy, action)
		}
		if fx.Domain != nil {
			if err := m.upsertDomain(fx.Domain, now); err != nil {
				return err
			}
		}
		for _, addr := range fx.TouchedAccounts {
			if err := m.touchAccount(addr, t.BlockHeight, now); err != nil {
				return err
			}
		}
		sb.Transactions = append(sb.Transactions, t)
	}

	if err := m.putJSON(blockKey(data.Block.Height), &sb); err != nil {
		return err
	}
	if !m.hasBlocks || data.Block.Height > m.maxHeight {
		m.maxHeight = data.Block.Height
		m.hasBlocks = true
	}
	return nil
}

func (m *MemoryConnector) upsertDomain(up *common.DomainUpsert, now time.Time) error {
	var d common.Domain
	ok, err := m.getJSON(domainKey(up.DomainId), &d)
	if err != nil {
		return err
	}
	if !ok {
		d = common.Domain{
			DomainId:        up.DomainId,
			Kind:            "custom",
			SecurityModel:   "shared_security",
			BridgeContracts: json.RawMessage("[]"),
			CreatedAt:       now,
		}
	}
	if len(up.RiskParams) > 0 {
		d.RiskParams = up.RiskParams
	} else if len(d.RiskParams) == 0 {
		d.RiskParams = json.RawMessage("{}")
	}
	d.UpdatedAt = now
	return m.putJSON(domainKey(up.DomainId), &d)
}

func (m *MemoryConnector) touchAccount(addr common.HexBytes, height int64, now time.Time) error {
	var a common.Account
	ok, err := m.getJSON(accountKey(addr), &a)
	if err != nil {
		return err
	}
	if !ok {
		a = common.Account{
			Address:         addr,
			FirstSeenHeight: height,
			LastSeenHeight:  height,
			TxCount:         1,
		}
	} else {
		if height > a.LastSeenHeight {
			a.LastSeenHeight = height
		}
		a.TxCount++
	}
	a.UpdatedAt = now
	return m.putJSON(accountKey(addr), &a)
}

func (m *MemoryConnector) DeleteBlock(ctx context.Context, height int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cache.Contains(blockKey(height)) {
		return ErrNotFound
	}
	m.cache.Remove(blockKey(height))

	m.hasBlocks = false
	m.maxHeight = 0
	for _, key := range m.sortedBlockKeys() {
		var sb storedBlock
		if ok, err := m.getJSON(key, &sb); err != nil {
			return err
		} else if ok {
			m.maxHeight = sb.Block.Height
			m.hasBlocks = true
			break
		}
	}
	return nil
}

// sortedBlockKeys returns block keys newest first; the zero-padded key format
// makes lexicographic order match height order.
func (m *MemoryConnector) sortedBlockKeys() []string {
	keys := make([]string, 0)
	for _, k := range m.cache.Keys() {
		if strings.HasPrefix(k, "block:") {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

func (m *MemoryConnector) loadBlock(key string) (*storedBlock, error) {
	var sb storedBlock
	ok, err := m.getJSON(key, &sb)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	for i := range sb.Transactions {
		t := &sb.Transactions[i]
		if err := t.Payload.Rehydrate(t.PayloadType); err != nil {
			return nil, err
		}
	}
	return &sb, nil
}

func paginate(length, limit, offset int) (int, int) {
	if offset >= length {
		return 0, 0
	}
	end := offset + limit
	if limit <= 0 || end > length {
		end = length
	}
	return offset, end
}

func (m *MemoryConnector) GetMaxHeight(ctx context.Context) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxHeight, m.hasBlocks, nil
}

func (m *MemoryConnector) GetBlocks(ctx context.Context, qf QueryFilter) ([]common.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]common.Block, 0)
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return nil, err
		}
		if sb != nil {
			blocks = append(blocks, sb.Block)
		}
	}
	start, end := paginate(len(blocks), qf.Limit, qf.Offset)
	return blocks[start:end], nil
}

func (m *MemoryConnector) GetBlockByHeight(ctx context.Context, height int64) (*common.Block, []common.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sb, err := m.loadBlock(blockKey(height))
	if err != nil {
		return nil, nil, err
	}
	if sb == nil {
		return nil, nil, ErrNotFound
	}
	txs := append([]common.Transaction(nil), sb.Transactions...)
	sort.Slice(txs, func(i, j int) bool { return txs[i].Position < txs[j].Position })
	return &sb.Block, txs, nil
}

func (m *MemoryConnector) allTransactionsDesc() ([]common.Transaction, error) {
	txs := make([]common.Transaction, 0)
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return nil, err
		}
		if sb == nil {
			continue
		}
		txs = append(txs, sb.Transactions...)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Id > txs[j].Id })
	return txs, nil
}

func (m *MemoryConnector) GetTransactions(ctx context.Context, qf QueryFilter) ([]common.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all, err := m.allTransactionsDesc()
	if err != nil {
		return nil, err
	}
	filtered := make([]common.Transaction, 0, len(all))
	for _, t := range all {
		if len(qf.Sender) > 0 && !bytes.Equal(t.Sender, qf.Sender) {
			continue
		}
		filtered = append(filtered, t)
	}
	start, end := paginate(len(filtered), qf.Limit, qf.Offset)
	return filtered[start:end], nil
}

func (m *MemoryConnector) GetTransactionByHash(ctx context.Context, hash []byte) (*common.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all, err := m.allTransactionsDesc()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if bytes.Equal(all[i].TxHash, hash) {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryConnector) GetDomains(ctx context.Context) ([]common.Domain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	domains := make([]common.Domain, 0)
	for _, k := range m.cache.Keys() {
		if !strings.HasPrefix(k, "domain:") {
			continue
		}
		var d common.Domain
		if ok, err := m.getJSON(k, &d); err != nil {
			return nil, err
		} else if ok {
			domains = append(domains, d)
		}
	}
	sort.Slice(domains, func(i, j int) bool {
		if domains[i].UpdatedAt.Equal(domains[j].UpdatedAt) {
			return domains[i].DomainId < domains[j].DomainId
		}
		return domains[i].UpdatedAt.After(domains[j].UpdatedAt)
	})
	return domains, nil
}

func (m *MemoryConnector) GetRollupBatches(ctx context.Context, qf QueryFilter) ([]common.RollupBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	batches := make([]common.RollupBatch, 0)
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return nil, err
		}
		if sb == nil {
			continue
		}
		for _, b := range sb.Batches {
			if qf.DomainId != "" && b.DomainId != qf.DomainId {
				continue
			}
			batches = append(batches, b)
		}
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].Id > batches[j].Id })
	start, end := paginate(len(batches), qf.Limit, qf.Offset)
	return batches[start:end], nil
}

func (m *MemoryConnector) GetGovernanceEvents(ctx context.Context, qf QueryFilter) ([]common.GovernanceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]common.GovernanceEvent, 0)
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return nil, err
		}
		if sb != nil {
			events = append(events, sb.Governance...)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Id > events[j].Id })
	start, end := paginate(len(events), qf.Limit, qf.Offset)
	return events[start:end], nil
}

func (m *MemoryConnector) GetPrivacyActions(ctx context.Context, qf QueryFilter) ([]common.PrivacyAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	actions := make([]common.PrivacyAction, 0)
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return nil, err
		}
		if sb != nil {
			actions = append(actions, sb.Privacy...)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Id > actions[j].Id })
	start, end := paginate(len(actions), qf.Limit, qf.Offset)
	return actions[start:end], nil
}

func (m *MemoryConnector) GetAccounts(ctx context.Context, qf QueryFilter) ([]common.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]common.Account, 0)
	for _, k := range m.cache.Keys() {
		if !strings.HasPrefix(k, "account:") {
			continue
		}
		var a common.Account
		if ok, err := m.getJSON(k, &a); err != nil {
			return nil, err
		} else if ok {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].LastSeenHeight == accounts[j].LastSeenHeight {
			return bytes.Compare(accounts[i].Address, accounts[j].Address) < 0
		}
		return accounts[i].LastSeenHeight > accounts[j].LastSeenHeight
	})
	start, end := paginate(len(accounts), qf.Limit, qf.Offset)
	return accounts[start:end], nil
}

func (m *MemoryConnector) GetChainStats(ctx context.Context) (common.ChainStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats common.ChainStats
	var minTs, maxTs int64
	var txTotal int64
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return stats, err
		}
		if sb == nil {
			continue
		}
		b := sb.Block
		if stats.Blocks == 0 || b.TimestampMs < minTs {
			minTs = b.TimestampMs
		}
		if stats.Blocks == 0 || b.TimestampMs > maxTs {
			maxTs = b.TimestampMs
		}
		if b.Height > stats.Height {
			stats.Height = b.Height
		}
		txTotal += int64(b.TxCount)
		stats.Blocks++
	}
	if stats.Blocks >= 2 && maxTs > minTs {
		spanMs := maxTs - minTs
		stats.BlockTimeMs = spanMs / (stats.Blocks - 1)
		stats.TPS = float64(txTotal) / (float64(spanMs) / 1000.0)
	}
	return stats, nil
}

func (m *MemoryConnector) GetDAStats(ctx context.Context) (common.DAStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats common.DAStats
	var blocks, blobs int64
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return stats, err
		}
		if sb == nil {
			continue
		}
		blocks++
		blobs += int64(sb.Block.DABlobCount())
	}
	if blocks > 0 {
		stats.BlobsPerBlock = float64(blobs) / float64(blocks)
	}
	return stats, nil
}

func (m *MemoryConnector) GetDomainStats(ctx context.Context) ([]common.DomainStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDomain := make(map[string]*common.DomainStats)
	for _, key := range m.sortedBlockKeys() {
		sb, err := m.loadBlock(key)
		if err != nil {
			return nil, err
		}
		if sb == nil {
			continue
		}
		for _, b := range sb.Batches {
			s, ok := byDomain[b.DomainId]
			if !ok {
				s = &common.DomainStats{DomainId: b.DomainId}
				byDomain[b.DomainId] = s
			}
			s.Batches++
			if b.BlockHeight > s.LastHeight {
				s.LastHeight = b.BlockHeight
			}
		}
	}
	stats := make([]common.DomainStats, 0, len(byDomain))
	for _, s := range byDomain {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Batches == stats[j].Batches {
			return stats[i].DomainId < stats[j].DomainId
		}
		return stats[i].Batches > stats[j].Batches
	})
	return stats, nil
}

func (m *MemoryConnector) Close() error {
	m.cache.Purge()
	return nil
}
